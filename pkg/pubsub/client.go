package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/printhub/vendor-ledger/pkg/config"
	"github.com/printhub/vendor-ledger/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
	// ErrNoSubscription is returned when the settlement worker starts without
	// its subscription configured.
	ErrNoSubscription = errors.New("pubsub subscription name is required")
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// Client carries the ledger's two Pub/Sub routes: audit events out and order
// settlements in.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects and verifies the configured settlement subscription.
// The outbox publisher runs with no subscription at all.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, projectID: projectID, cfg: cfg}

	if err := c.checkSubscription(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"audit_topic":             cfg.AuditTopic,
			"settlement_subscription": cfg.SettlementSubscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) checkSubscription(ctx context.Context) error {
	name := strings.TrimSpace(c.cfg.SettlementSubscription)
	if name == "" {
		return nil
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
		Subscription: c.resourceName(kindSubscription, name),
	})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("subscription %q does not exist", name)
	default:
		return fmt.Errorf("checking subscription %q: %w", name, err)
	}
}

// SettlementSubscription returns the subscriber for order settlement events.
func (c *Client) SettlementSubscription() (*pubsub.Subscriber, error) {
	if c == nil {
		return nil, errNotInitialized
	}
	name := strings.TrimSpace(c.cfg.SettlementSubscription)
	if name == "" {
		return nil, ErrNoSubscription
	}
	if c.client == nil {
		return nil, errNotInitialized
	}
	return c.client.Subscriber(c.resourceName(kindSubscription, name)), nil
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := c.resourceName(kindTopic, topic)
	if name == "" {
		return nil
	}
	return c.client.Publisher(name)
}

// Ping re-checks the settlement subscription, or the audit topic for
// publish-only binaries.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if strings.TrimSpace(c.cfg.SettlementSubscription) != "" {
		return c.checkSubscription(ctx)
	}
	topic := c.resourceName(kindTopic, c.cfg.AuditTopic)
	if topic == "" {
		return nil
	}
	if _, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic}); err != nil {
		return fmt.Errorf("checking topic %q: %w", c.cfg.AuditTopic, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id into projects/<p>/<kind>/<id>. Full
// resource names pass through unchanged.
func (c *Client) resourceName(kind resourceKind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(kind)+"/") {
		return name
	}
	if c.projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, name)
}
