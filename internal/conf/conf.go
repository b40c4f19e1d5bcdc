package conf

import (
	"time"
)

type Bootstrap struct {
	Server   Server   `toml:"server"`
	Data     Data     `toml:"data"`
	Log      Log      `toml:"log"`
	Editor   Editor   `toml:"editor"`
	Services Services `toml:"services"`

	Debug        bool   `toml:"-"`
	BuildVersion string `toml:"-"`
	ConfigDir    string `toml:"-"`
	ConfigPath   string `toml:"-"`
}

type Server struct {
	Debug bool       `toml:"debug" comment:"debug 模式下输出请求体日志"`
	HTTP  ServerHTTP `toml:"http"`
}

type ServerHTTP struct {
	Port    int      `toml:"port"`
	Timeout Duration `toml:"timeout" comment:"请求超时"`
	PProf   PProf    `toml:"pprof"`
}

type PProf struct {
	Enabled   bool     `toml:"enabled"`
	AccessIps []string `toml:"access_ips"`
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	Dsn             string   `toml:"dsn" comment:"sqlite 文件路径，或 postgres:// mysql:// 开头的连接串"`
	MaxIdleConns    int32    `toml:"max_idle_conns"`
	MaxOpenConns    int32    `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

type Log struct {
	Dir          string   `toml:"dir"`
	Level        string   `toml:"level" comment:"debug/info/warn/error"`
	MaxAge       Duration `toml:"max_age" comment:"日志保留时长"`
	RotationTime Duration `toml:"rotation_time"`
	RotationSize int64    `toml:"rotation_size" comment:"单个文件大小上限，单位 MB"`
}

// Editor 编辑会话相关
type Editor struct {
	SessionTTL   Duration `toml:"session_ttl" comment:"编辑会话空闲多久后回收，0 表示不回收"`
	OverlayCache int      `toml:"overlay_cache" comment:"轮廓缓存的掩码数量"`
	BrushSize    int      `toml:"brush_size"`
	FrameCount   int      `toml:"frame_count" comment:"生成描述时送入模型的帧数"`
	FrameMaxSide int      `toml:"frame_max_side" comment:"送入模型前帧的长边上限，0 表示不缩放"`
}

type Services struct {
	Segmentation Segmentation `toml:"segmentation"`
	Caption      Caption      `toml:"caption"`
	Translate    Translate    `toml:"translate"`
}

// Segmentation SAM2 分割服务
type Segmentation struct {
	URL      string   `toml:"url"`
	Token    string   `toml:"token"`
	Timeout  Duration `toml:"timeout"`
	Fallback bool     `toml:"fallback" comment:"服务不可用时使用本地平滑结果"`
}

// Caption DAM 描述服务
type Caption struct {
	URL     string   `toml:"url"`
	APIKey  string   `toml:"api_key"`
	Model   string   `toml:"model"`
	Timeout Duration `toml:"timeout"`
}

// Translate OpenAI 兼容的翻译模型
type Translate struct {
	URL           string   `toml:"url"`
	APIKey        string   `toml:"api_key"`
	Model         string   `toml:"model"`
	Timeout       Duration `toml:"timeout"`
	PromptEnToVi  string   `toml:"prompt_en_to_vi" comment:"{{text}} 会被替换为原文"`
	PromptViToEn  string   `toml:"prompt_vi_to_en"`
	PromptCombine string   `toml:"prompt_combine" comment:"{{captions}} 会被替换为待合并的描述"`
}

// Duration 配置文件中以 "10s" "5m" 的形式书写
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
