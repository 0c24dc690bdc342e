package dsnp

import "testing"

func TestNewPRIDLength(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"exact", []byte{1, 2, 3, 4, 5, 6, 7, 8}, false},
		{"short", []byte{1, 2, 3}, true},
		{"long", make([]byte, 9), true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPRID(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPRID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && string(p.Bytes()) != string(tt.data) {
				t.Errorf("Bytes() = %v, want %v", p.Bytes(), tt.data)
			}
		})
	}
}

func TestPRIDString(t *testing.T) {
	p, err := NewPRID([]byte{0x00, 0x01, 0xab, 0xcd, 0xef, 0x10, 0x20, 0x30})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := p.String(), "0001abcdef102030"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPublicKeyWithKeyID(t *testing.T) {
	k := PublicKey{Key: []byte{1, 2, 3}}
	if k.KeyID != nil {
		t.Fatal("fresh key should have no id")
	}
	k2 := k.WithKeyID(7)
	if k2.KeyID == nil || *k2.KeyID != 7 {
		t.Errorf("WithKeyID(7) id = %v, want 7", k2.KeyID)
	}
	if k.KeyID != nil {
		t.Error("WithKeyID mutated the receiver")
	}
}
