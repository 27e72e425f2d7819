package constants

// Fleet label keys
const (
	LabelManagedBy = "managed-by"            // Manager identifier
	LabelPool      = "elasticpool/pool"      // Unit name prefix the unit belongs to
	LabelUnitName  = "elasticpool/unit-name" // Controller-assigned unit name

	ManagedByElasticPool = "elasticpool"
)

// Docker label keys (dotted, per docker label convention)
const (
	DockerLabelManagedBy = "elasticpool.managed-by"
	DockerLabelPool      = "elasticpool.pool"
)

// EC2 tag keys
const (
	EC2TagName = "Name"
	EC2TagPool = "elasticpool:pool"
)

// Environment variables read by a worker to discover its own unit id
const (
	EnvUnitID   = "ELASTICPOOL_UNIT_ID"
	EnvPodName  = "POD_NAME"
	EnvHostname = "HOSTNAME"
)

// Pod phase constants (from K8s)
const (
	PodPhaseRunning   = "Running"
	PodPhasePending   = "Pending"
	PodPhaseSucceeded = "Succeeded"
	PodPhaseFailed    = "Failed"
	PodPhaseUnknown   = "Unknown"
)
