package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" job/metric ":  "job_metric",
		"foo..bar":      "foo.bar",
		"multi  space":  "multi__space",
		"..analysis..":  "analysis",
		"slash/name/id": "slash_name_id",
	}
	for input, want := range tests {
		if got := NormalizeName(input); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	got := FormatLine(Metric{
		Name:  "repoanalyzer.job.transition",
		Value: "1",
		Kind:  "c",
		Tags:  mergeTags(map[string]string{"env": "prod", " service ": " api "}, map[string]string{"result": " success ", "": "ignored", "env": "stage"}),
	})
	want := "repoanalyzer.job.transition:1|c|#env:stage,result:success,service:api"
	if got != want {
		t.Fatalf("FormatLine mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := FormatLine(Metric{Name: "x", Value: "2.5", Kind: "g"}); got != "x:2.5|g" {
		t.Fatalf("FormatLine without tags = %q", got)
	}
	if got := FormatLine(Metric{Value: "1", Kind: "c"}); got != "" {
		t.Fatalf("FormatLine without name = %q, want empty", got)
	}
}

func TestClientSendsOverUDP(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     ".repoanalyzer.",
		GlobalTags: map[string]string{"env": "test"},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if !client.Enabled() {
		t.Fatal("expected enabled client")
	}
	client.Timing("job.duration", 1500*time.Millisecond, map[string]string{"result": "success"})

	buf := make([]byte, 512)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "repoanalyzer.job.duration:1500|ms|#env:test,result:success"
	if got := string(buf[:n]); got != want {
		t.Fatalf("datagram = %q, want %q", got, want)
	}
}

func TestClientCloseAndNil(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	client := &Client{conn: clientConn, logger: nil}
	if !client.Enabled() {
		t.Fatal("expected Enabled with active connection")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected disabled after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	client.Count("after.close", 1, nil)

	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	nilClient.Count("x", 1, nil)
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil || !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Count("analysis.commit", 1, map[string]string{"role": "latest", "": "x"})
	r.Gauge("pool.queue_depth", 3, nil)
	r.Timing("job.duration", 2*time.Second, nil)

	if got := len(r.Metrics()); got != 3 {
		t.Fatalf("recorded %d metrics, want 3", got)
	}
	commits := r.Named("analysis.commit")
	if len(commits) != 1 || commits[0].Tags["role"] != "latest" || len(commits[0].Tags) != 1 {
		t.Fatalf("unexpected commit metrics: %+v", commits)
	}
	if d := r.Named("job.duration"); len(d) != 1 || d[0].Value != "2000" {
		t.Fatalf("unexpected duration metrics: %+v", d)
	}
}
