package conf

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfig 默认配置
func DefaultConfig() Bootstrap {
	return Bootstrap{
		Server: Server{
			HTTP: ServerHTTP{
				Port:    15123,
				Timeout: Duration(60 * time.Second),
				PProf: PProf{
					AccessIps: []string{"::1", "127.0.0.1"},
				},
			},
		},
		Data: Data{
			Database: Database{
				Dsn:             "configs/data.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
		},
		Log: Log{
			Dir:          "./logs",
			Level:        "info",
			MaxAge:       Duration(7 * 24 * time.Hour),
			RotationTime: Duration(12 * time.Hour),
			RotationSize: 50,
		},
		Editor: Editor{
			SessionTTL:   Duration(30 * time.Minute),
			OverlayCache: 256,
			BrushSize:    25,
			FrameCount:   8,
			FrameMaxSide: 1024,
		},
		Services: Services{
			Segmentation: Segmentation{
				URL:      "http://127.0.0.1:5000",
				Timeout:  Duration(60 * time.Second),
				Fallback: true,
			},
			Caption: Caption{
				URL:     "http://127.0.0.1:8000",
				Model:   "describe_anything_model",
				Timeout: Duration(180 * time.Second),
			},
			Translate: Translate{
				Timeout: Duration(60 * time.Second),
			},
		},
	}
}

// SetupConfig 读取配置文件，文件不存在时写入默认配置
func SetupConfig(path string) (*Bootstrap, error) {
	cfg := DefaultConfig()
	cfg.ConfigPath = path
	cfg.ConfigDir = filepath.Dir(path)

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, WriteConfig(&cfg, path)
	}
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteConfig 写入配置文件
func WriteConfig(cfg *Bootstrap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
