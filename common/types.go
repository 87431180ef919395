// common/types.go - Shared types used across packages
package common

import "time"

// Host approval lifecycle states.
const (
	HostPending  = "pending"
	HostApproved = "approved"
	HostRejected = "rejected"
)

// Child host lifecycle states.
const (
	ChildRequested    = "requested"
	ChildProvisioning = "provisioning"
	ChildRunning      = "running"
	ChildFailed       = "failed"
	ChildDeleting     = "deleting"
)

// Host represents a managed host in the fleet inventory.
type Host struct {
	ID              string         `json:"id"`
	FQDN            string         `json:"fqdn"`
	IPv4            string         `json:"ipv4,omitempty"`
	IPv6            string         `json:"ipv6,omitempty"`
	Platform        string         `json:"platform,omitempty"`
	PlatformRelease string         `json:"platform_release,omitempty"`
	ApprovalStatus  string         `json:"approval_status"`
	Active          bool           `json:"active"`
	LastSeen        *time.Time     `json:"last_seen,omitempty"`
	OSDetails       map[string]any `json:"os_details,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// ChildHost represents a VM or container provisioned under a parent host.
type ChildHost struct {
	ID           string    `json:"id"`
	ParentHostID string    `json:"parent_host_id"`
	Name         string    `json:"name"`
	VirtType     string    `json:"virt_type"` // kvm | lxd | vmm | wsl | bhyve
	Image        string    `json:"image,omitempty"`
	CPUs         int       `json:"cpus"`
	MemoryMB     int       `json:"memory_mb"`
	DiskGB       int       `json:"disk_gb"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
