package planner

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const defaultKafkaPort = "9092"

// ParseKafkaURL validates and resolves a CREATE SOURCE/SINK connector URL
// of the form kafka://host[:port]/topic, matching parse_kafka_url in
// _examples/original_source/src/materialize/sql/mod.rs: scheme must be
// "kafka", a host is required, and the path must name exactly one topic
// segment. The broker is returned as one host:port string, the form
// github.com/twmb/franz-go's kgo.SeedBrokers takes its entries in; the host
// name is not looked up, so it is not resolved to an IP address here.
func ParseKafkaURL(raw string) (broker, topic string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("planner: invalid connector URL: %w", err)
	}
	if u.Scheme != "kafka" {
		return "", "", fmt.Errorf("planner: connector URL scheme must be kafka, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("planner: connector URL is missing a host")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) != 1 || segments[0] == "" {
		return "", "", fmt.Errorf("planner: connector URL must name exactly one topic, got %q", u.Path)
	}
	topic = segments[0]

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		// No port in the URL: SplitHostPort errors on a bare host, so fall
		// back to the broker default rather than treating it as invalid.
		host, port = u.Host, defaultKafkaPort
	}
	if host == "" {
		return "", "", fmt.Errorf("planner: connector URL is missing a host")
	}
	return net.JoinHostPort(host, port), topic, nil
}
