package main

import "testing"

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		address string
		wantErr bool
	}{
		{"0xaaaa", false},
		{"0x52908400098527886E0F7030069857D2E4169EE7", false},
		{"", true},
		{"aaaa", true},
		{"0xzz12", true},
		{"0x12", true},
	}

	for _, tt := range tests {
		err := validateAddress(tt.address)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateAddress(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
		}
	}
}

func TestValidateHandle(t *testing.T) {
	tests := []struct {
		handle  string
		wantErr bool
	}{
		{"alice", false},
		{"bob_the.voter-1", false},
		{"", true},
		{"a", true},
		{"has space", true},
	}

	for _, tt := range tests {
		err := validateHandle(tt.handle)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateHandle(%q) error = %v, wantErr %v", tt.handle, err, tt.wantErr)
		}
	}
}
