package services

import "testing"

func TestValidateChildHostRequest(t *testing.T) {
	cases := []struct {
		name     string
		req      ChildHostRequest
		platform string
		wantErr  bool
	}{
		{
			name:     "kvm on linux with defaults",
			req:      ChildHostRequest{Name: "web-01", VirtType: "kvm"},
			platform: "Linux",
		},
		{
			name:     "wsl on windows",
			req:      ChildHostRequest{Name: "dev", VirtType: "WSL", CPUs: 2, MemoryMB: 2048, DiskGB: 40},
			platform: "Windows",
		},
		{
			name:     "vmm requires openbsd",
			req:      ChildHostRequest{Name: "vm1", VirtType: "vmm"},
			platform: "linux",
			wantErr:  true,
		},
		{
			name:     "unknown virt type",
			req:      ChildHostRequest{Name: "vm1", VirtType: "xen"},
			platform: "linux",
			wantErr:  true,
		},
		{
			name:     "bad name",
			req:      ChildHostRequest{Name: "-leading-dash", VirtType: "kvm"},
			platform: "linux",
			wantErr:  true,
		},
		{
			name:     "empty name",
			req:      ChildHostRequest{Name: "", VirtType: "lxd"},
			platform: "linux",
			wantErr:  true,
		},
		{
			name:     "cpus out of range",
			req:      ChildHostRequest{Name: "big", VirtType: "kvm", CPUs: 128},
			platform: "linux",
			wantErr:  true,
		},
		{
			name:     "memory too small",
			req:      ChildHostRequest{Name: "tiny", VirtType: "kvm", MemoryMB: 64},
			platform: "linux",
			wantErr:  true,
		},
		{
			name:     "unknown parent platform allowed",
			req:      ChildHostRequest{Name: "vm1", VirtType: "bhyve"},
			platform: "",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateChildHostRequest(&c.req, c.platform)
			if (err != nil) != c.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, c.wantErr)
			}
		})
	}
}

func TestValidateChildHostRequestDefaults(t *testing.T) {
	req := ChildHostRequest{Name: "Web-01", VirtType: "KVM"}
	if err := ValidateChildHostRequest(&req, "linux"); err != nil {
		t.Fatal(err)
	}
	if req.Name != "web-01" || req.VirtType != "kvm" {
		t.Errorf("not normalized: %+v", req)
	}
	if req.CPUs != 1 || req.MemoryMB != 1024 || req.DiskGB != 10 {
		t.Errorf("defaults not applied: %+v", req)
	}
}
