package importer

import "testing"

const bitwardenSample = `{
  "folders": [{"id": "f1", "name": "Work"}],
  "items": [
    {
      "type": 1,
      "name": "GitHub",
      "notes": "personal account",
      "folderId": "f1",
      "login": {
        "uris": [{"uri": "https://github.com/login"}],
        "username": "alice",
        "password": "hunter2",
        "totp": ""
      }
    },
    {
      "type": 2,
      "name": "Wifi password",
      "notes": "living room router"
    },
    {
      "type": 1,
      "name": "Empty login",
      "login": {"username": "", "password": ""}
    }
  ]
}`

func TestBitwardenParseLogin(t *testing.T) {
	p := &BitwardenParser{}
	result, err := p.Parse([]byte(bitwardenSample), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Secrets) != 2 {
		t.Fatalf("Parse() returned %d secrets, want 2 (empty login skipped)", len(result.Secrets))
	}

	login := result.Secrets[0]
	if login.ServiceName != "GitHub" {
		t.Errorf("Secrets[0].ServiceName = %q, want %q", login.ServiceName, "GitHub")
	}
	if login.Plaintext != "hunter2" {
		t.Errorf("Secrets[0].Plaintext = %q, want %q", login.Plaintext, "hunter2")
	}
	if len(login.Domains) != 1 || login.Domains[0] != "github.com" {
		t.Errorf("Secrets[0].Domains = %v, want [github.com]", login.Domains)
	}
	if len(login.Tags) != 1 || login.Tags[0] != "Work" {
		t.Errorf("Secrets[0].Tags = %v, want [Work]", login.Tags)
	}
}

func TestBitwardenParseSecureNote(t *testing.T) {
	p := &BitwardenParser{}
	result, err := p.Parse([]byte(bitwardenSample), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var note *ImportedSecret
	for _, s := range result.Secrets {
		if s.ServiceName == "Wifi password" {
			note = s
		}
	}
	if note == nil {
		t.Fatal("secure note item was dropped")
	}
	if note.Plaintext != "living room router" {
		t.Errorf("note.Plaintext = %q, want %q", note.Plaintext, "living room router")
	}
}

func TestBitwardenParseInvalidJSON(t *testing.T) {
	p := &BitwardenParser{}
	if _, err := p.Parse([]byte("not json"), ParseOptions{}); err == nil {
		t.Error("Parse(invalid) error = nil, want an error")
	}
}

func TestBitwardenParseUnsupportedType(t *testing.T) {
	p := &BitwardenParser{}
	data := `{"items": [{"type": 99, "name": "weird"}]}`
	result, err := p.Parse([]byte(data), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Parse() warnings = %v, want exactly one warning for the unsupported type", result.Warnings)
	}
}
