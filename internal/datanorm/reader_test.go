package datanorm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestReadContacts_MapsHeaders(t *testing.T) {
	csv := "\ufeff会社名,メールアドレス,FAX\n" +
		"Acme,a@x.com,555-1000\n" +
		"Beta,,03-1111-2222\n" +
		"Gamma,g@z.org\n"

	rows, err := ReadContacts(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadContacts: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	want := []RawContact{
		{Row: 1, Company: "Acme", Email: "a@x.com", Fax: "555-1000"},
		{Row: 2, Company: "Beta", Email: "", Fax: "03-1111-2222"},
		{Row: 3, Company: "Gamma", Email: "g@z.org", Fax: ""},
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestReadContacts_NoContactColumns(t *testing.T) {
	_, err := ReadContacts(strings.NewReader("company,phone\nAcme,123\n"))
	if !errors.Is(err, ErrNoContactColumns) {
		t.Fatalf("err = %v, want ErrNoContactColumns", err)
	}
}

func TestReadContacts_Empty(t *testing.T) {
	rows, err := ReadContacts(strings.NewReader(""))
	if err != nil || rows != nil {
		t.Fatalf("got %v, %v", rows, err)
	}
}

type fakeS3 struct {
	bucket, key string
	body        string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.bucket, f.key = *in.Bucket, *in.Key
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestS3Source_ReadContacts(t *testing.T) {
	fake := &fakeS3{body: "email,fax\na@x.com,\n"}
	src := NewS3SourceWithClient(fake, "imports")

	rows, err := src.ReadContacts(context.Background(), "2026/10/customers.csv")
	if err != nil {
		t.Fatalf("ReadContacts: %v", err)
	}
	if fake.bucket != "imports" || fake.key != "2026/10/customers.csv" {
		t.Errorf("fetched s3://%s/%s", fake.bucket, fake.key)
	}
	if len(rows) != 1 || rows[0].Email != "a@x.com" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestParseS3URI(t *testing.T) {
	b, k, err := ParseS3URI("s3://imports/2026/customers.csv")
	if err != nil || b != "imports" || k != "2026/customers.csv" {
		t.Fatalf("got %q %q %v", b, k, err)
	}
	for _, bad := range []string{"imports/x.csv", "s3://imports", "s3:///x.csv"} {
		if _, _, err := ParseS3URI(bad); err == nil {
			t.Errorf("ParseS3URI(%q) should fail", bad)
		}
	}
}
