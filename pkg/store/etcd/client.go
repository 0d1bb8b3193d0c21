package etcd

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EventType distinguishes watch notifications.
type EventType int

const (
	EventPut EventType = iota
	EventDelete
)

// WatchEvent is a change to the watched key. A non-nil Err means the watch
// broke and must be re-established.
type WatchEvent struct {
	Type  EventType
	Value []byte
	Err   error
}

// Client is the subset of the etcd API the store needs.
type Client interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Watch(ctx context.Context, key string) <-chan WatchEvent
	MemberList(ctx context.Context) ([]string, error)
	Close() error
}

// v3Client adapts *clientv3.Client to Client.
type v3Client struct {
	cli *clientv3.Client
}

// Dial connects to the cluster at endpoints.
func Dial(endpoints []string, dialTimeout time.Duration, username, password string) (Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Username:    username,
		Password:    password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to etcd")
	}
	return &v3Client{cli: cli}, nil
}

func (c *v3Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := c.cli.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (c *v3Client) Put(ctx context.Context, key string, value []byte) error {
	_, err := c.cli.Put(ctx, key, string(value))
	return err
}

func (c *v3Client) Watch(ctx context.Context, key string) <-chan WatchEvent {
	out := make(chan WatchEvent)
	go func() {
		defer close(out)
		for resp := range c.cli.Watch(clientv3.WithRequireLeader(ctx), key) {
			if err := resp.Err(); err != nil {
				send(ctx, out, WatchEvent{Err: err})
				return
			}
			for _, ev := range resp.Events {
				we := WatchEvent{Type: EventPut, Value: ev.Kv.Value}
				if ev.Type == mvccpb.DELETE {
					we = WatchEvent{Type: EventDelete}
				}
				if !send(ctx, out, we) {
					return
				}
			}
		}
	}()
	return out
}

func (c *v3Client) MemberList(ctx context.Context) ([]string, error) {
	resp, err := c.cli.MemberList(ctx)
	if err != nil {
		return nil, err
	}
	var urls []string
	for _, m := range resp.Members {
		urls = append(urls, m.ClientURLs...)
	}
	return urls, nil
}

func (c *v3Client) Close() error {
	return c.cli.Close()
}

func send(ctx context.Context, out chan<- WatchEvent, ev WatchEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
