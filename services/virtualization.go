package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"sysmanage/common"
	"sysmanage/database"
)

// Supported virtualization backends and the platforms that can run them.
var virtPlatforms = map[string][]string{
	"kvm":   {"linux"},
	"lxd":   {"linux"},
	"vmm":   {"openbsd"},
	"wsl":   {"windows"},
	"bhyve": {"freebsd"},
}

var childNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ChildHostRequest is the validated input for provisioning a child host.
type ChildHostRequest struct {
	Name     string `json:"name"`
	VirtType string `json:"virt_type"`
	Image    string `json:"image,omitempty"`
	CPUs     int    `json:"cpus"`
	MemoryMB int    `json:"memory_mb"`
	DiskGB   int    `json:"disk_gb"`
}

// ValidateChildHostRequest normalizes and checks a provision request
// against the parent host's platform. Defaults are applied in place.
func ValidateChildHostRequest(req *ChildHostRequest, parentPlatform string) error {
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	req.VirtType = strings.ToLower(strings.TrimSpace(req.VirtType))

	if !childNameRe.MatchString(req.Name) {
		return fmt.Errorf("invalid child host name %q", req.Name)
	}
	platforms, ok := virtPlatforms[req.VirtType]
	if !ok {
		return fmt.Errorf("unsupported virtualization type %q", req.VirtType)
	}
	if parentPlatform != "" {
		supported := false
		for _, p := range platforms {
			if strings.EqualFold(parentPlatform, p) {
				supported = true
				break
			}
		}
		if !supported {
			return fmt.Errorf("virtualization type %q is not available on platform %q", req.VirtType, parentPlatform)
		}
	}

	if req.CPUs == 0 {
		req.CPUs = 1
	}
	if req.MemoryMB == 0 {
		req.MemoryMB = 1024
	}
	if req.DiskGB == 0 {
		req.DiskGB = 10
	}
	if req.CPUs < 1 || req.CPUs > 64 {
		return fmt.Errorf("cpus out of range: %d", req.CPUs)
	}
	if req.MemoryMB < 128 || req.MemoryMB > 1024*1024 {
		return fmt.Errorf("memory_mb out of range: %d", req.MemoryMB)
	}
	if req.DiskGB < 1 || req.DiskGB > 4096 {
		return fmt.Errorf("disk_gb out of range: %d", req.DiskGB)
	}
	return nil
}

// ProvisionChildHost records the child and dispatches the provision command
// to the parent's agent.
func ProvisionChildHost(ctx context.Context, parent *common.Host, req ChildHostRequest, requestedBy string) (*common.ChildHost, error) {
	child, err := database.CreateChildHost(ctx, common.ChildHost{
		ParentHostID: parent.ID,
		Name:         req.Name,
		VirtType:     req.VirtType,
		Image:        req.Image,
		CPUs:         req.CPUs,
		MemoryMB:     req.MemoryMB,
		DiskGB:       req.DiskGB,
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"child_host_id": child.ID,
		"name":          child.Name,
		"virt_type":     child.VirtType,
		"image":         child.Image,
		"cpus":          child.CPUs,
		"memory_mb":     child.MemoryMB,
		"disk_gb":       child.DiskGB,
	}
	if _, err := Agents.DispatchCommand(ctx, parent.ID, CmdProvisionChild, payload, requestedBy); err != nil {
		_ = database.SetChildHostStatus(ctx, child.ID, common.ChildFailed, "dispatch failed")
		return nil, err
	}
	if err := database.SetChildHostStatus(ctx, child.ID, common.ChildProvisioning, ""); err != nil {
		return nil, err
	}
	child.Status = common.ChildProvisioning
	return child, nil
}

// TeardownChildHost dispatches teardown to the parent's agent and marks the
// record deleting; the command hook reaps it on success.
func TeardownChildHost(ctx context.Context, child *common.ChildHost, requestedBy string) error {
	payload := map[string]any{
		"child_host_id": child.ID,
		"name":          child.Name,
		"virt_type":     child.VirtType,
	}
	if _, err := Agents.DispatchCommand(ctx, child.ParentHostID, CmdTeardownChild, payload, requestedBy); err != nil {
		return err
	}
	return database.SetChildHostStatus(ctx, child.ID, common.ChildDeleting, "")
}
