package domain

import "testing"

func TestValidateQueryName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"example.com", false},
		{"a.b.c", false},
		{"label-with-hyphen.com", false},
		{"", false}, // root
		{"too-long-label-" + string(make([]byte, 50)) + ".com", true},
		{"-start-with-hyphen.com", true},
		{"end-with-hyphen-.com", true},
		{"invalid_char.com", true},
		{"trailing..dot.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateQueryName(tt.name); (err != nil) != tt.wantErr {
				t.Errorf("ValidateQueryName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}
