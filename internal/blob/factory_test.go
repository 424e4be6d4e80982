package blob

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	appcfg "github.com/fdg312/meal-hub/internal/config"
)

func readyS3() appcfg.S3Config {
	return appcfg.S3Config{
		Endpoint:          "https://storage.yandexcloud.net",
		Region:            "ru-central1",
		Bucket:            "exports",
		AccessKeyID:       "key",
		SecretAccessKey:   "secret",
		PresignTTLSeconds: 60,
	}
}

func TestNewExportsStore(t *testing.T) {
	tests := []struct {
		name      string
		cfg       appcfg.BlobConfig
		wantMode  string
		wantStore bool
		wantErr   string
		wantLog   string
	}{
		{
			name:     "local forced",
			cfg:      appcfg.BlobConfig{Mode: appcfg.BlobModeLocal},
			wantMode: appcfg.BlobModeLocal,
			wantLog:  "mode=local (forced)",
		},
		{
			name:     "auto without s3 falls back to local",
			cfg:      appcfg.BlobConfig{Mode: appcfg.BlobModeAuto},
			wantMode: appcfg.BlobModeLocal,
			wantLog:  "code=s3_not_configured",
		},
		{
			name:    "s3 with missing config fails",
			cfg:     appcfg.BlobConfig{Mode: appcfg.BlobModeS3, S3: appcfg.S3Config{Endpoint: "https://storage.yandexcloud.net"}},
			wantErr: "missing required config",
		},
		{
			name:     "exports override wins over blob mode",
			cfg:      appcfg.BlobConfig{Mode: appcfg.BlobModeS3, ExportsMode: appcfg.BlobModeLocal, ExportsModeSet: true},
			wantMode: appcfg.BlobModeLocal,
		},
		{
			name:      "auto with s3 configured",
			cfg:       appcfg.BlobConfig{Mode: appcfg.BlobModeAuto, S3: readyS3()},
			wantMode:  appcfg.BlobModeS3,
			wantStore: true,
			wantLog:   "mode=s3 (auto, configured)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			store, mode, err := NewExportsStore(context.Background(), tt.cfg, log.New(&buf, "", 0))

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				if store != nil || mode != "" {
					t.Fatalf("expected nil store and empty mode on error, got store=%v mode=%q", store, mode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mode != tt.wantMode {
				t.Errorf("mode = %s, want %s", mode, tt.wantMode)
			}
			if (store != nil) != tt.wantStore {
				t.Errorf("store presence = %t, want %t", store != nil, tt.wantStore)
			}
			if tt.wantLog != "" && !strings.Contains(buf.String(), tt.wantLog) {
				t.Errorf("expected log containing %q, got: %s", tt.wantLog, buf.String())
			}
		})
	}
}

func TestS3StorePublicURL(t *testing.T) {
	cfg := readyS3()
	cfg.PreferPublicURL = true
	cfg.PublicBaseURL = "https://cdn.example.com/exports/"

	store, err := NewS3Store(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}

	url, err := store.DownloadURL(context.Background(), "u1/list.csv")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if url != "https://cdn.example.com/exports/u1/list.csv" {
		t.Errorf("url = %s", url)
	}
}

func TestS3StorePresignedURL(t *testing.T) {
	store, err := NewS3Store(context.Background(), readyS3())
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}

	url, err := store.DownloadURL(context.Background(), "u1/list.pdf")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if !strings.HasPrefix(url, "https://storage.yandexcloud.net/exports/u1/list.pdf?") || !strings.Contains(url, "X-Amz-Signature=") {
		t.Errorf("unexpected presigned url: %s", url)
	}
}
