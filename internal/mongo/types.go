// Package mongo wraps go.mongodb.org/mongo-driver with the handful of
// admin commands the Cluster Prober, Actuator and Account Bootstrapper
// need: hello, replSetGetStatus, replSetGetConfig, replSetInitiate,
// replSetReconfig, createUser and createCollection. Responses are
// modeled as explicit tagged structs the way percona-backup-mongodb's
// mdbstructs package does it, one field per key actually consumed;
// unknown keys are left for the driver's bson decoder to ignore.
package mongo

import "time"

const (
	// connectTimeout bounds a single dial+auth attempt against one node.
	connectTimeout = 5 * time.Second

	// ErrCodeUserAlreadyExists is the server error code createUser
	// returns when the named user is already present.
	ErrCodeUserAlreadyExists = 51003

	// ErrCodeNotYetInitialized is returned by replSetGetStatus before
	// replSetInitiate has ever run on the node.
	ErrCodeNotYetInitialized = 94

	// ErrCodeUnauthorized is returned when probing with no credentials
	// against a node that already has auth enabled.
	ErrCodeUnauthorized = 13
)

// HelloResponse models the fields consumed from the `hello` command
// (formerly isMaster).
type HelloResponse struct {
	IsWritablePrimary bool     `bson:"isWritablePrimary"`
	SetName           string   `bson:"setName"`
	Primary           string   `bson:"primary"`
	Hosts             []string `bson:"hosts"`
}

// StatusMember is one entry of replSetGetStatus's members array,
// mirroring percona-backup-mongodb's mdbstructs.Member down to the
// fields this controller reads.
type StatusMember struct {
	ID       int    `bson:"_id"`
	Name     string `bson:"name"`
	StateStr string `bson:"stateStr"`
	Health   int    `bson:"health"`
}

// StatusResponse models replSetGetStatus.
type StatusResponse struct {
	Set     string         `bson:"set"`
	MyState int            `bson:"myState"`
	Members []StatusMember `bson:"members"`
	Ok      float64        `bson:"ok"`
}

// ConfigMember is one entry of replSetGetConfig's members array.
type ConfigMember struct {
	ID       int     `bson:"_id"`
	Host     string  `bson:"host"`
	Priority float64 `bson:"priority"`
	Votes    int     `bson:"votes"`
}

// ConfigDocument mirrors the `config` sub-document of replSetGetConfig
// and doubles as the payload shape for replSetInitiate/replSetReconfig.
type ConfigDocument struct {
	ID      string         `bson:"_id"`
	Version int64          `bson:"version"`
	Members []ConfigMember `bson:"members"`
}

// ConfigResponse models the top-level replSetGetConfig reply.
type ConfigResponse struct {
	Config ConfigDocument `bson:"config"`
	Ok     float64        `bson:"ok"`
}
