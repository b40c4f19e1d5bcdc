package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/annotator/internal/conf"
	"github.com/gowvp/annotator/internal/data"
	"github.com/gowvp/annotator/internal/core/caption"
	"github.com/gowvp/annotator/internal/core/caption/store/captiondb"
	"github.com/gowvp/annotator/internal/core/region"
	"github.com/gowvp/annotator/internal/core/region/adapter"
	"github.com/gowvp/annotator/internal/core/region/store/regiondb"
	"github.com/gowvp/annotator/internal/core/segment"
	"github.com/gowvp/annotator/internal/core/segment/store/segmentdb"
	"github.com/gowvp/annotator/pkg/dam"
	"github.com/gowvp/annotator/pkg/overlay"
	"github.com/gowvp/annotator/pkg/sam"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewSegmentStore, NewRegionStore, NewCaptionStore,
	NewCaptionCore, NewRegionCore, NewSegmentCore,
	NewSegmenter, NewSessions, NewCompositor, NewMaskCache,
	NewSegmentAPI, NewRegionAPI, NewSessionAPI, NewCaptionAPI, NewExportAPI,
)

type Usecase struct {
	Conf *conf.Bootstrap
	DB   *gorm.DB

	SegmentAPI SegmentAPI
	RegionAPI  RegionAPI
	SessionAPI SessionAPI
	CaptionAPI CaptionAPI
	ExportAPI  ExportAPI

	Sessions *region.Sessions
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	cfg := uc.Conf.Server
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	g.NoRoute(func(c *gin.Context) {
		c.JSON(404, "来到了无人的荒漠")
	})
	// 如果启用了 Pprof，设置 Pprof 监控
	if cfg.HTTP.PProf.Enabled {
		web.SetupPProf(g, &cfg.HTTP.PProf.AccessIps)
	}

	setupRouter(g, uc)
	return g
}

func NewSegmentStore(db *gorm.DB) segment.Storer {
	return segmentdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewRegionStore 建表后转换旧版文本掩码，失败不影响启动
func NewRegionStore(db *gorm.DB) region.Storer {
	store := regiondb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
	if _, err := data.MigrateRegionMasks(context.Background(), db); err != nil {
		slog.Error("MigrateRegionMasks", "err", err)
	}
	return store
}

func NewCaptionStore(db *gorm.DB) caption.Storer {
	return captiondb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewCaptionCore 描述模型与翻译模型未配置时对应接口返回外部服务错误
func NewCaptionCore(store caption.Storer, cfg *conf.Bootstrap) caption.Core {
	opts := []caption.Option{
		caption.WithFrameOptions(caption.FrameOptions{
			Count:   cfg.Editor.FrameCount,
			MaxSide: cfg.Editor.FrameMaxSide,
		}),
	}
	if c := cfg.Services.Caption; c.URL != "" {
		opts = append(opts, caption.WithDescriber(dam.NewClient(dam.Config{
			URL:     c.URL,
			APIKey:  c.APIKey,
			Model:   c.Model,
			Timeout: c.Timeout.Duration(),
		})))
	}
	t := cfg.Services.Translate
	translator := dam.NewTranslator(dam.TranslatorConfig{
		URL:           t.URL,
		APIKey:        t.APIKey,
		Model:         t.Model,
		PromptEnToVi:  t.PromptEnToVi,
		PromptViToEn:  t.PromptViToEn,
		PromptCombine: t.PromptCombine,
		Timeout:       t.Timeout.Duration(),
	})
	if translator.Configured() {
		opts = append(opts, caption.WithTranslator(translator))
	}
	return caption.NewCore(store, opts...)
}

// NewSegmenter SAM2 服务，可选本地兜底
func NewSegmenter(cfg *conf.Bootstrap) region.Segmenter {
	s := cfg.Services.Segmentation
	engine := sam.NewEngine().SetConfig(sam.Config{
		URL:      s.URL,
		Token:    s.Token,
		Timeout:  s.Timeout.Duration(),
		Fallback: s.Fallback,
	})
	return adapter.NewSAMAdapter(engine)
}

// NewRegionCore 删除区域时同步删除区域描述
func NewRegionCore(store region.Storer, captionCore caption.Core, segmenter region.Segmenter) region.Core {
	return region.NewCore(store,
		region.WithCascade(captionCore),
		region.WithSegmenter(segmenter),
	)
}

// NewSegmentCore 删除片段时依次清理描述与区域
func NewSegmentCore(store segment.Storer, captionCore caption.Core, regionCore region.Core) segment.Core {
	return segment.NewCore(store, segment.WithCascade(captionCore, regionCore))
}

// NewSessions 启动空闲会话回收协程，随 cleanup 退出
func NewSessions(cfg *conf.Bootstrap) (*region.Sessions, func()) {
	ttl := cfg.Editor.SessionTTL.Duration()
	s := region.NewSessions(ttl)
	ctx, cancel := context.WithCancel(context.Background())
	go s.StartEvictWorker(ctx, max(ttl/4, time.Second))
	return s, cancel
}

func NewCompositor(cfg *conf.Bootstrap) (*overlay.Compositor, error) {
	return overlay.NewCompositor(cfg.Editor.OverlayCache)
}
