package segment_test

import "github.com/ixugo/goddd/pkg/web"

func pager() web.PagerFilter {
	return web.PagerFilter{Page: 1, Size: 100}
}
