package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Hello issues the `hello` command against the connected node.
func (c *Client) Hello(ctx context.Context) (HelloResponse, error) {
	var resp HelloResponse
	err := c.admin().RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&resp)
	if err != nil {
		return HelloResponse{}, fmt.Errorf("hello: %w", err)
	}
	return resp, nil
}

// Status issues replSetGetStatus.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.admin().RunCommand(ctx, bson.D{{Key: "replSetGetStatus", Value: 1}}).Decode(&resp)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("replSetGetStatus: %w", err)
	}
	return resp, nil
}

// Config issues replSetGetConfig.
func (c *Client) Config(ctx context.Context) (ConfigResponse, error) {
	var resp ConfigResponse
	err := c.admin().RunCommand(ctx, bson.D{{Key: "replSetGetConfig", Value: 1}}).Decode(&resp)
	if err != nil {
		return ConfigResponse{}, fmt.Errorf("replSetGetConfig: %w", err)
	}
	return resp, nil
}

// Initiate issues replSetInitiate with the given config document.
func (c *Client) Initiate(ctx context.Context, cfg ConfigDocument) error {
	err := c.admin().RunCommand(ctx, bson.D{{Key: "replSetInitiate", Value: toConfigBSON(cfg)}}).Err()
	if err != nil {
		return fmt.Errorf("replSetInitiate: %w", err)
	}
	return nil
}

// Reconfigure issues replSetReconfig, optionally with force:true.
func (c *Client) Reconfigure(ctx context.Context, cfg ConfigDocument, force bool) error {
	cmd := bson.D{
		{Key: "replSetReconfig", Value: toConfigBSON(cfg)},
		{Key: "force", Value: force},
	}
	if err := c.admin().RunCommand(ctx, cmd).Err(); err != nil {
		return fmt.Errorf("replSetReconfig: %w", err)
	}
	return nil
}

func toConfigBSON(cfg ConfigDocument) bson.M {
	members := make([]bson.M, 0, len(cfg.Members))
	for _, m := range cfg.Members {
		members = append(members, bson.M{
			"_id":      m.ID,
			"host":     m.Host,
			"priority": m.Priority,
			"votes":    m.Votes,
		})
	}
	return bson.M{
		"_id":     cfg.ID,
		"version": cfg.Version,
		"members": members,
	}
}

// CreateUser runs createUser in the given database with the given
// roles. Returns ErrUserExists (unwrap-comparable) if the user is
// already present, per the bootstrapper's idempotence requirement.
func (c *Client) CreateUser(ctx context.Context, database, user, password string, roles []string) error {
	roleDocs := make([]bson.M, 0, len(roles))
	for _, r := range roles {
		roleDocs = append(roleDocs, bson.M{"role": r, "db": database})
	}

	cmd := bson.D{
		{Key: "createUser", Value: user},
		{Key: "pwd", Value: password},
		{Key: "roles", Value: roleDocs},
	}

	err := c.database(database).RunCommand(ctx, cmd).Err()
	if err == nil {
		return nil
	}
	if commandErrorCode(err) == ErrCodeUserAlreadyExists {
		return ErrUserExists
	}
	return fmt.Errorf("createUser %s@%s: %w", user, database, err)
}

// EnsureDatabase makes the named database durable by creating a
// collection in it and inserting a sentinel document, mirroring the
// createCollection-or-insert step of the bootstrapper.
func (c *Client) EnsureDatabase(ctx context.Context, database, sentinelCollection string) error {
	db := c.database(database)

	err := db.CreateCollection(ctx, sentinelCollection)
	if err != nil && !isNamespaceExists(err) {
		return fmt.Errorf("createCollection %s.%s: %w", database, sentinelCollection, err)
	}

	_, err = db.Collection(sentinelCollection).UpdateOne(ctx,
		bson.M{"_id": "bootstrap-sentinel"},
		bson.M{"$setOnInsert": bson.M{"createdBy": "mongorsop"}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("insert sentinel into %s.%s: %w", database, sentinelCollection, err)
	}
	return nil
}

// ErrUserExists is returned by CreateUser when the user is already
// present; callers treat it as success.
var ErrUserExists = errors.New("user already exists")

// commandErrorCode extracts the numeric server error code from a
// mongo.CommandError, or -1 if err isn't one.
func commandErrorCode(err error) int {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return int(cmdErr.Code)
	}
	return -1
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists"
}
