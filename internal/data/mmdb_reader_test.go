package data

import (
	"net"
	"os"
	"sync"
	"testing"
)

const testMMDBPath = "../../testdata/GeoLite2-Country-Test.mmdb"

func skipIfNoMMDB(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(testMMDBPath); os.IsNotExist(err) {
		t.Skip("test MMDB file not found; download it with: curl -L -o testdata/GeoLite2-Country-Test.mmdb https://github.com/maxmind/MaxMind-DB/raw/main/test-data/GeoLite2-Country-Test.mmdb")
	}
}

func TestNewMmdbReader_Success(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()
}

func TestNewMmdbReader_InvalidPath(t *testing.T) {
	_, err := NewMmdbReader("/nonexistent/path.mmdb")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestMmdbReader_LookupCountry(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	tests := []struct {
		name string
		ip   string
		want string
	}{
		{
			name: "UK IP",
			ip:   "2.125.160.216",
			want: "GB",
		},
		{
			name: "US IP",
			ip:   "216.160.83.56",
			want: "US",
		},
		{
			name: "IPv6 JP",
			ip:   "2001:218::",
			want: "JP",
		},
		{
			// Addresses absent from the database yield an empty code,
			// not an error.
			name: "unknown IP",
			ip:   "127.0.0.1",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := net.ParseIP(tt.ip)
			if ip == nil {
				t.Fatalf("failed to parse IP: %s", tt.ip)
			}

			country, err := reader.LookupCountry(ip)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if country != tt.want {
				t.Errorf("expected country %q, got %q", tt.want, country)
			}
		})
	}
}

func TestMmdbReader_Reload(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	if err := reader.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	// Lookups keep working against the swapped-in reader.
	country, err := reader.LookupCountry(net.ParseIP("216.160.83.56"))
	if err != nil {
		t.Fatalf("unexpected error after reload: %v", err)
	}
	if country != "US" {
		t.Errorf("expected country US after reload, got %s", country)
	}
}

func TestMmdbReader_ConcurrentLookupAndReload(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}
	defer reader.Close()

	// Lookups must never observe a reader whose mapping Reload has already
	// released.
	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ip := net.ParseIP("216.160.83.56")
			for {
				select {
				case <-done:
					return
				default:
				}
				country, err := reader.LookupCountry(ip)
				if err != nil {
					t.Errorf("lookup failed during reload: %v", err)
					return
				}
				if country != "US" {
					t.Errorf("expected country US during reload, got %s", country)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := reader.Reload(); err != nil {
			t.Errorf("reload failed: %v", err)
			break
		}
	}

	close(done)
	wg.Wait()
}

func TestMmdbReader_Close(t *testing.T) {
	skipIfNoMMDB(t)

	reader, err := NewMmdbReader(testMMDBPath)
	if err != nil {
		t.Fatalf("failed to create reader: %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("failed to close reader: %v", err)
	}
}
