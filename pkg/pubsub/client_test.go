package pubsub

import (
	"testing"

	"github.com/angelmondragon/maison-pos/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{"maison", "pos-order-events", "projects/maison/topics/pos-order-events"},
		{"maison", " projects/other/topics/x ", "projects/other/topics/x"},
		{"", "pos-order-events", ""},
		{"maison", "  ", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	names := topicNames(config.PubSubConfig{OrdersTopic: "orders", NotificationTopic: " "})
	if len(names) != 1 || names[0] != "orders" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestClientOptionsPrefersInlineCredentials(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{ProjectID: "maison"}); len(opts) != 0 {
		t.Fatalf("expected default credentials, got %d options", len(opts))
	}
	opts := clientOptions(config.GCPConfig{CredentialsJSON: "{}", ApplicationCredentials: "/tmp/key.json"})
	if len(opts) != 1 {
		t.Fatalf("expected a single credentials option, got %d", len(opts))
	}
}
