package storage

import (
	"bytes"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func TestKVConfig_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr bool
		wantTTL time.Duration
	}{
		{
			name: "valid/canonical case",
			config: `storageDir: ./tempTestDir3012705204
keyTTL: "168h"`,
			wantErr: false,
			wantTTL: time.Duration(168) * time.Hour,
		},
		{
			name:    "no key TTL uses the default",
			config:  `storageDir: ./tempTestDir3012705204`,
			wantErr: false,
			wantTTL: defaultKeyTTL,
		},
		{
			name: "key TTL not a duration",
			config: `storageDir: ./tempTestDir3012705204
keyTTL: "168"`,
			wantErr: true,
		},
		{
			name: "negative key TTL",
			config: `storageDir: ./tempTestDir3012705204
keyTTL: "-1h"`,
			wantErr: true,
		},
		{
			name:    "no storage path",
			config:  `keyTTL: "168h"`,
			wantErr: true,
		},
		{
			name:    "not a JSON object",
			config:  `[]`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := bytes.NewBuffer([]byte(tt.config))
			dec := yaml.NewDecoder(buf)
			var c KVConfig
			err := dec.Decode(&c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("wantErr = %v but got %v with err %v", tt.wantErr, err != nil, err)
			}
			if err == nil && c.KeyTTLDuration != tt.wantTTL {
				t.Errorf("wanted a key TTL of %v but got %v", tt.wantTTL, c.KeyTTLDuration)
			}
		})
	}
}
