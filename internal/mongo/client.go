package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"mongorsop/internal/logger"
)

// Client is a short-lived connection to one MongoDB node's admin
// database. The Cluster Prober opens one per probed endpoint per
// cycle; the Actuator and Account Bootstrapper open one against
// whichever node they're targeting. None of it is held across cycles,
// per the "acquire at cycle start, release at end" design note.
type Client struct {
	conn *mongo.Client
	host string
}

// Dial connects to host ("ip:port") with the given credentials.
// Credentials may be empty, which connects unauthenticated — used to
// probe a node before the root user exists, and by the Account
// Bootstrapper's first connection under the localhost exception.
func Dial(ctx context.Context, host, username, password string) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	uri := fmt.Sprintf("mongodb://%s/?connectTimeoutMS=%d&serverSelectionTimeoutMS=%d",
		host, connectTimeout.Milliseconds(), connectTimeout.Milliseconds())

	opts := options.Client().ApplyURI(uri).SetDirect(true)
	if username != "" {
		opts.SetAuth(options.Credential{
			AuthSource: "admin",
			Username:   username,
			Password:   password,
		})
	}

	conn, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", host, err)
	}
	if err := conn.Ping(dialCtx, readpref.Primary()); err != nil {
		_ = conn.Disconnect(context.Background())
		return nil, fmt.Errorf("ping %s: %w", host, err)
	}

	return &Client{conn: conn, host: host}, nil
}

// Close releases the underlying connection. Safe to call on a nil
// receiver so callers can defer it unconditionally after Dial fails.
func (c *Client) Close(ctx context.Context) {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Disconnect(ctx); err != nil {
		logger.Debug("error closing mongo connection", logger.F("host", c.host), logger.F("error", err))
	}
}

func (c *Client) admin() *mongo.Database {
	return c.conn.Database("admin")
}

func (c *Client) database(name string) *mongo.Database {
	return c.conn.Database(name)
}
