package importer

import "testing"

const lastpassSample = "url,username,password,totp,extra,name,grouping,fav\n" +
	"https://example.com,bob,s3cret,,,Example Site,Personal,0\n" +
	"http://sn,,,,some secure note text,Secure Note,,0\n" +
	",,,,,,,"

func TestLastPassParseRows(t *testing.T) {
	p := &LastPassParser{}
	result, err := p.Parse([]byte(lastpassSample), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Secrets) != 2 {
		t.Fatalf("Parse() returned %d secrets, want 2 (blank row skipped)", len(result.Secrets))
	}

	site := result.Secrets[0]
	if site.ServiceName != "Example Site" || site.Plaintext != "s3cret" {
		t.Errorf("Secrets[0] = %+v, want ServiceName=Example Site Plaintext=s3cret", site)
	}
	if len(site.Domains) != 1 || site.Domains[0] != "example.com" {
		t.Errorf("Secrets[0].Domains = %v, want [example.com]", site.Domains)
	}
	if len(site.Tags) != 1 || site.Tags[0] != "Personal" {
		t.Errorf("Secrets[0].Tags = %v, want [Personal]", site.Tags)
	}

	note := result.Secrets[1]
	if note.Plaintext != "some secure note text" {
		t.Errorf("Secrets[1].Plaintext = %q, want the extra field's content", note.Plaintext)
	}
	if len(note.Domains) != 0 {
		t.Errorf("Secrets[1].Domains = %v, want none (http://sn placeholder stripped)", note.Domains)
	}
}

func TestLastPassMissingNameColumn(t *testing.T) {
	p := &LastPassParser{}
	if _, err := p.Parse([]byte("url,username,password\nhttp://x,y,z"), ParseOptions{}); err == nil {
		t.Error("Parse() error = nil, want missing-column error")
	}
}

func TestLastPassHTMLEntitiesDecoded(t *testing.T) {
	data := "url,username,password,totp,extra,name,grouping,fav\n" +
		",,p&amp;w,,,Tom &amp; Jerry,,0"
	p := &LastPassParser{}
	result, err := p.Parse([]byte(data), ParseOptions{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Secrets) != 1 {
		t.Fatalf("Parse() returned %d secrets, want 1", len(result.Secrets))
	}
	if result.Secrets[0].ServiceName != "Tom & Jerry" {
		t.Errorf("ServiceName = %q, want decoded entities", result.Secrets[0].ServiceName)
	}
	if result.Secrets[0].Plaintext != "p&w" {
		t.Errorf("Plaintext = %q, want decoded entities", result.Secrets[0].Plaintext)
	}
}
