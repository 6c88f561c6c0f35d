// 结果目录命名：Result_N 序列的冲突检查与 next-name 推导
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/zhipai/zhipai/pkg/logger"
	"github.com/zhipai/zhipai/pkg/model"
)

var resultNamePattern = regexp.MustCompile(`^Result_(\d+)$`)

// ParseResultName 解析 Result_N 形式的目录名，返回 N
func ParseResultName(name string) (int, bool) {
	m := resultNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// 数字溢出等损坏情况按 0 处理
		return 0, false
	}
	return n, true
}

// FormatResultName 生成 Result_N 形式的目录名
func FormatResultName(n int) string {
	return fmt.Sprintf("Result_%d", n)
}

// NextResultName 推导下一个可用的输出目录名
//
// 每次调用都从权威的远程列表重新推导，避免跨会话的过期计数器冲突；
// 远程不可达时依次退回本地求解端的目录列表、本地持久层，列表全部
// 不可达时读持久化计数器，计数器也缺失或损坏时按空列表（即
// Result_1）处理。
func (d *Dispatcher) NextResultName(ctx context.Context) string {
	names := d.remoteFolderNames(ctx)
	if names == nil && d.opts.LocalURL != "" {
		names = d.listFoldersHTTP(ctx, d.opts.LocalURL)
	}
	if names == nil {
		names = d.storeFolderNames(ctx)
	}
	if names == nil {
		if d.opts.Counter != nil {
			if n, err := d.opts.Counter.NextCounter(ctx); err == nil && n > 0 {
				return FormatResultName(n)
			}
		}
		return FormatResultName(1)
	}

	max := 0
	for name := range names {
		if n, ok := ParseResultName(name); ok && n > max {
			max = n
		}
	}
	return FormatResultName(max + 1)
}

// knownFolderNames 合并本地和远程的已知结果目录名，用于命名冲突守卫
func (d *Dispatcher) knownFolderNames(ctx context.Context) map[string]struct{} {
	names := make(map[string]struct{})
	for n := range d.remoteFolderNames(ctx) {
		names[n] = struct{}{}
	}
	if d.opts.LocalURL != "" {
		for n := range d.listFoldersHTTP(ctx, d.opts.LocalURL) {
			names[n] = struct{}{}
		}
	}
	for n := range d.storeFolderNames(ctx) {
		names[n] = struct{}{}
	}
	return names
}

// remoteFolderNames 远程列表，不可达时返回 nil 以便区分空列表
func (d *Dispatcher) remoteFolderNames(ctx context.Context) map[string]struct{} {
	if d.opts.ServerlessURL == "" {
		return nil
	}
	return d.listFoldersHTTP(ctx, d.opts.ServerlessURL)
}

// storeFolderNames 本地持久层的目录列表，不可用或读取失败时返回 nil
func (d *Dispatcher) storeFolderNames(ctx context.Context) map[string]struct{} {
	if d.opts.Lister == nil {
		return nil
	}
	folders, err := d.opts.Lister.ListFolders(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("本地结果目录列表读取失败")
		return nil
	}
	names := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		names[f.Name] = struct{}{}
	}
	return names
}

// listFoldersHTTP 通过结果目录列表端点获取目录名，失败时返回 nil
func (d *Dispatcher) listFoldersHTTP(ctx context.Context, baseURL string) map[string]struct{} {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/results/folders", nil)
	if err != nil {
		return nil
	}
	resp, err := d.client.Do(req)
	if err != nil {
		logger.Debug().Str("endpoint", baseURL).Err(err).Msg("结果目录列表请求失败")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil
	}

	var listing model.FolderListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil
	}
	names := make(map[string]struct{}, len(listing.Folders))
	for _, f := range listing.Folders {
		names[f.Name] = struct{}{}
	}
	return names
}
