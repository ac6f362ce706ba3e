package constants

import "time"

const (
	// DefaultMongoPort is the member port used when MONGO_PORT is unset.
	DefaultMongoPort = 27017

	// DefaultCycleInterval is the Supervisor Loop cadence (§4.7).
	DefaultCycleInterval = 30 * time.Second

	// DefaultElectionTimeout bounds how long the Actuator waits for a
	// writable primary to emerge after Initiate/ForceReconfigure (§4.5).
	DefaultElectionTimeout = 60 * time.Second

	// CycleDeadlineFactor bounds the overall cycle wall-clock time (§5).
	CycleDeadlineFactor = 3

	// ProbeTimeout is the per-node timeout used by the Cluster Prober (§4.2).
	ProbeTimeout = 5 * time.Second

	// ProbeMaxRetries is K in §4.2: the number of in-cycle retries for a
	// node observed in a Transient state before it is promoted to its
	// final classification.
	ProbeMaxRetries = 3

	// ProbeRetryBaseDelay is the starting delay of the Transient retry
	// backoff described in §4.2.
	ProbeRetryBaseDelay = 1 * time.Second

	// AdminCallBackoffBase, AdminCallBackoffCap and AdminCallMaxAttempts
	// parameterize the single reusable retry policy referenced by §4.5
	// and §9 for all MongoDB admin calls.
	AdminCallBackoffBase = 1 * time.Second
	AdminCallBackoffCap  = 30 * time.Second
	AdminCallMaxAttempts = 5

	// ReconfigureRetries is the number of same-cycle replSetReconfig
	// attempts Reconfigure makes on "not master"/stepdown before falling
	// back to ForceReconfigure (§4.5).
	ReconfigureRetries = 3

	// DefaultScaleDownHysteresisCycles resolves the §9 Open Question on
	// downscale vs. transient-outage ambiguity: a decrease in expected
	// member count must persist for this many consecutive cycles before
	// the Planner acts on it.
	DefaultScaleDownHysteresisCycles = 1

	// PrimaryLossEscalationCycles is the number of consecutive
	// SteadyState-without-primary cycles at which the supervisor
	// escalates to ForceReconfigure (the escalation happens on that
	// cycle), per end-to-end scenario 5 in §8.
	PrimaryLossEscalationCycles = 2

	// InitialDatabaseSentinelCollection mirrors the original
	// implementation's sentinel-document approach (§4.6, SPEC_FULL §C.3).
	InitialDatabaseSentinelCollection = "users"

	// AdminDatabase names the admin database that holds the root user
	// (§4.6). Nothing queries it to detect whether account bootstrap has
	// already happened; the Bootstrapper treats createUser's user-exists
	// error as success instead.
	AdminDatabase = "admin"
)
