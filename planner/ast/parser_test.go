package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE orders (id int64 NOT NULL, amount float64 NULL)")
	require.NoError(t, err)
	ct, ok := stmt.(CreateTable)
	require.True(t, ok)
	require.Equal(t, "orders", ct.Name)
	require.Equal(t, []ColumnDef{
		{Name: "id", Type: "int64", Nullable: false},
		{Name: "amount", Type: "float64", Nullable: true},
	}, ct.Columns)
}

func TestParseCreateSourceKafkaURL(t *testing.T) {
	stmt, err := Parse("CREATE SOURCE clicks (id int64 NOT NULL) URL 'kafka://broker:9092/clicks'")
	require.NoError(t, err)
	cs, ok := stmt.(CreateSource)
	require.True(t, ok)
	require.Equal(t, "clicks", cs.Name)
	require.Equal(t, "kafka://broker:9092/clicks", cs.URL)
}

func TestParseInsertMultiRowExplicitColumns(t *testing.T) {
	stmt, err := Parse("INSERT INTO orders (id, amount) VALUES (1, 9.5), (2, 3.25)")
	require.NoError(t, err)
	ins, ok := stmt.(Insert)
	require.True(t, ok)
	require.Equal(t, "orders", ins.Table)
	require.Equal(t, []string{"id", "amount"}, ins.Columns)
	require.Len(t, ins.Rows, 2)
	require.Equal(t, IntLiteral{Value: 1}, ins.Rows[0][0])
	require.Equal(t, FloatLiteral{Value: 9.5}, ins.Rows[0][1])
}

func TestParseDropCascadeIfExists(t *testing.T) {
	stmt, err := Parse("DROP VIEW IF EXISTS v1, v2 CASCADE")
	require.NoError(t, err)
	d, ok := stmt.(Drop)
	require.True(t, ok)
	require.True(t, d.IfExists)
	require.Equal(t, DropCascade, d.Mode)
	require.Equal(t, []string{"v1", "v2"}, d.Names)
}

func TestParseSelectWildcardAndQualifiedWildcard(t *testing.T) {
	stmt, err := Parse("SELECT *, t.* FROM orders t")
	require.NoError(t, err)
	sel, ok := stmt.(Select)
	require.True(t, ok)
	require.Len(t, sel.Query.Projection, 2)
	require.True(t, sel.Query.Projection[0].Wildcard)
	require.Equal(t, "t", sel.Query.Projection[1].QualifiedWildcardTable)
}

func TestParseBinaryPrecedenceAndOrLower(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a = 1 AND b = 2 OR c = 3")
	require.NoError(t, err)
	sel := stmt.(Select)
	// OR should bind loosest: top node is OR(AND(a=1,b=2), c=3).
	top, ok := sel.Query.Where.(BinaryOp)
	require.True(t, ok)
	require.Equal(t, "OR", top.Op)
	left, ok := top.Left.(BinaryOp)
	require.True(t, ok)
	require.Equal(t, "AND", left.Op)
}

func TestParseBetweenDoesNotConsumeTrailingAndAsLogical(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a BETWEEN 1 AND 10 AND b = 2")
	require.NoError(t, err)
	sel := stmt.(Select)
	top, ok := sel.Query.Where.(BinaryOp)
	require.True(t, ok)
	require.Equal(t, "AND", top.Op)
	between, ok := top.Left.(Between)
	require.True(t, ok)
	require.Equal(t, IntLiteral{Value: 1}, between.Low)
	require.Equal(t, IntLiteral{Value: 10}, between.High)
}

func TestParseNotBetweenAndNotIn(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a NOT BETWEEN 1 AND 5")
	require.NoError(t, err)
	sel := stmt.(Select)
	between, ok := sel.Query.Where.(Between)
	require.True(t, ok)
	require.True(t, between.Negated)

	stmt, err = Parse("SELECT * FROM t WHERE a NOT IN (1, 2, 3)")
	require.NoError(t, err)
	sel = stmt.(Select)
	in, ok := sel.Query.Where.(InList)
	require.True(t, ok)
	require.True(t, in.Negated)
	require.Len(t, in.List, 3)
}

func TestParseIsNullAndIsNotNull(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a IS NULL AND b IS NOT NULL")
	require.NoError(t, err)
	sel := stmt.(Select)
	top := sel.Query.Where.(BinaryOp)
	require.Equal(t, "AND", top.Op)
	left := top.Left.(UnaryOp)
	require.Equal(t, "ISNULL", left.Op)
	right := top.Right.(UnaryOp)
	require.Equal(t, "ISNOTNULL", right.Op)
}

func TestParseFuncCallCountStarAndDistinct(t *testing.T) {
	stmt, err := Parse("SELECT count(*), count(DISTINCT a) FROM t")
	require.NoError(t, err)
	sel := stmt.(Select)
	c1 := sel.Query.Projection[0].Expr.(FuncCall)
	require.Equal(t, "count", c1.Name)
	require.True(t, c1.Star)
	c2 := sel.Query.Projection[1].Expr.(FuncCall)
	require.True(t, c2.Distinct)
}

func TestParseCaseSearchedAndSimple(t *testing.T) {
	stmt, err := Parse("SELECT CASE WHEN a = 1 THEN 'one' ELSE 'other' END FROM t")
	require.NoError(t, err)
	sel := stmt.(Select)
	c := sel.Query.Projection[0].Expr.(Case)
	require.Nil(t, c.Operand)
	require.Len(t, c.Whens, 1)
	require.NotNil(t, c.Else)

	stmt, err = Parse("SELECT CASE a WHEN 1 THEN 'one' END FROM t")
	require.NoError(t, err)
	sel = stmt.(Select)
	c = sel.Query.Projection[0].Expr.(Case)
	require.NotNil(t, c.Operand)
	require.Nil(t, c.Else)
}

func TestParseCast(t *testing.T) {
	stmt, err := Parse("SELECT CAST(a AS float64) FROM t")
	require.NoError(t, err)
	sel := stmt.(Select)
	cast := sel.Query.Projection[0].Expr.(Cast)
	require.Equal(t, "float64", cast.Type)
}

func TestParseJoinVariants(t *testing.T) {
	cases := []struct {
		sql  string
		kind JoinKind
	}{
		{"SELECT * FROM a CROSS JOIN b", JoinCross},
		{"SELECT * FROM a JOIN b ON a.id = b.id", JoinInnerOn},
		{"SELECT * FROM a JOIN b USING (id)", JoinInnerUsing},
		{"SELECT * FROM a NATURAL JOIN b", JoinInnerNatural},
		{"SELECT * FROM a LEFT JOIN b ON a.id = b.id", JoinLeftOuter},
		{"SELECT * FROM a RIGHT JOIN b ON a.id = b.id", JoinRightOuter},
		{"SELECT * FROM a FULL JOIN b ON a.id = b.id", JoinFullOuter},
	}
	for _, c := range cases {
		stmt, err := Parse(c.sql)
		require.NoError(t, err, c.sql)
		sel := stmt.(Select)
		require.Len(t, sel.Query.From[0].Joins, 1, c.sql)
		require.Equal(t, c.kind, sel.Query.From[0].Joins[0].Kind, c.sql)
	}
}

func TestParseUnion(t *testing.T) {
	stmt, err := Parse("SELECT a FROM t1 UNION ALL SELECT a FROM t2")
	require.NoError(t, err)
	sel := stmt.(Select)
	require.NotNil(t, sel.Query.Set)
	require.Equal(t, "UNION", sel.Query.Set.Op)
	require.True(t, sel.Query.Set.All)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("SELECT FROM WHERE")
	require.Error(t, err)
}
