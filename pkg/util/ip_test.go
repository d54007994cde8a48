package util

import (
	"errors"
	"testing"
)

func TestHostRange(t *testing.T) {
	tests := []struct {
		name      string
		cidr      string
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		{
			name:      "ipv4 /24",
			cidr:      "10.0.0.0/24",
			wantStart: "10.0.0.1",
			wantEnd:   "10.0.0.254",
		},
		{
			name:      "ipv4 /16",
			cidr:      "172.16.0.0/16",
			wantStart: "172.16.0.1",
			wantEnd:   "172.16.255.254",
		},
		{
			name:      "ipv4 /30",
			cidr:      "10.1.1.0/30",
			wantStart: "10.1.1.1",
			wantEnd:   "10.1.1.2",
		},
		{
			name:      "ipv4 /31 uses both addresses",
			cidr:      "10.1.1.0/31",
			wantStart: "10.1.1.0",
			wantEnd:   "10.1.1.1",
		},
		{
			name:      "ipv4 /32 single host",
			cidr:      "10.0.0.7/32",
			wantStart: "10.0.0.7",
			wantEnd:   "10.0.0.7",
		},
		{
			name:      "ipv6 /120",
			cidr:      "fd00::/120",
			wantStart: "fd00::1",
			wantEnd:   "fd00::ff",
		},
		{
			name:      "ipv6 /128",
			cidr:      "fd00::5/128",
			wantStart: "fd00::5",
			wantEnd:   "fd00::5",
		},
		{
			name:    "host bits set",
			cidr:    "10.0.0.1/24",
			wantErr: true,
		},
		{
			name:    "no mask",
			cidr:    "10.0.0.0",
			wantErr: true,
		},
		{
			name:    "garbage",
			cidr:    "999.0.0.0/8",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, _, err := HostRange(tt.cidr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("HostRange(%q) expected error", tt.cidr)
				}
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("HostRange(%q) error should be ErrInvalidArgument, got %v", tt.cidr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("HostRange(%q) unexpected error: %v", tt.cidr, err)
			}
			if start.String() != tt.wantStart || end.String() != tt.wantEnd {
				t.Errorf("HostRange(%q) = %s..%s, want %s..%s", tt.cidr, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		ip      string
		wantErr bool
	}{
		{"10.0.0.5", false},
		{"fd00::5", false},
		{"10.0.0.5/24", true},
		{"10.0.0", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			_, err := ParseAddress(tt.ip)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseAddress(%q) error = %v, wantErr %v", tt.ip, err, tt.wantErr)
			}
		})
	}
}
