// Package pubsub wraps the Pub/Sub v2 client with the topic and
// subscription the scheduler is configured for.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/chatwoot-scheduler/pkg/config"
	"github.com/angelmondragon/chatwoot-scheduler/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient dials Pub/Sub and fails fast when the schedule topic, or the
// delivery-status subscription when one is configured, is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}

	raw, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub: %w", err)
	}

	c := &Client{client: raw, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        cfg.ScheduleTopic,
			"subscription": cfg.DeliveryStatusSubscription,
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	creds := strings.TrimSpace(gcp.CredentialsJSON)
	if creds == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
}

// Ping checks every configured resource and reports all missing ones at once.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}

	topic := c.qualify(kindTopic, c.cfg.ScheduleTopic)
	if topic == "" {
		return errors.New("pubsub schedule topic is required")
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	errs := describeLookup(err, "topic", topic)

	if sub := c.qualify(kindSubscription, c.cfg.DeliveryStatusSubscription); sub != "" {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
		errs = multierr.Append(errs, describeLookup(err, "subscription", sub))
	}
	return errs
}

func describeLookup(err error, kind, name string) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %s does not exist", kind, name)
	default:
		return fmt.Errorf("lookup %s %s: %w", kind, name, err)
	}
}

// Publisher returns an ordered publisher for a topic ID or resource name.
// Messages sharing an ordering key are delivered in publish order; after a
// failed publish the caller must ResumePublish that key.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	topic := c.qualify(kindTopic, name)
	if topic == "" {
		return nil
	}
	p := c.client.Publisher(topic)
	p.EnableMessageOrdering = true
	return p
}

// SchedulePublisher publishes schedule lifecycle events.
func (c *Client) SchedulePublisher() *pubsub.Publisher {
	if c == nil {
		return nil
	}
	return c.Publisher(c.cfg.ScheduleTopic)
}

// Subscription returns a subscriber for a subscription ID or resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := c.qualify(kindSubscription, name)
	if sub == "" {
		return nil
	}
	return c.client.Subscriber(sub)
}

// DeliveryStatusSubscription receives the delivery reports n8n publishes.
func (c *Client) DeliveryStatusSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.DeliveryStatusSubscription)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// qualify expands a bare ID into projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through unchanged.
func (c *Client) qualify(kind, name string) string {
	id := strings.TrimSpace(name)
	if c == nil || id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	if c.project == "" {
		return ""
	}
	return "projects/" + c.project + "/" + kind + "/" + id
}
