package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// DBSink persists the notification for the in-app inbox.
type DBSink struct {
	repo RepositoryAPI
}

func NewDBSink(repo RepositoryAPI) *DBSink {
	return &DBSink{repo: repo}
}

func (s *DBSink) Name() string { return "database" }

func (s *DBSink) Deliver(ctx context.Context, n *Notification) error {
	return s.repo.Create(ctx, ToDataModel(n))
}

// PubSubSink publishes the notification as JSON for external consumers (push, e-mail).
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubSink(ctx context.Context, projectID, topicID, credentialsFile string) (*PubSubSink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check topic %s: %w", topicID, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("topic %s does not exist", topicID)
	}
	return &PubSubSink{client: client, topic: topic}, nil
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Deliver(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	res := s.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":       string(n.Kind),
			"company_id": n.CompanyID,
			"user_id":    n.UserID,
		},
	})
	_, err = res.Get(ctx)
	return err
}

func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
