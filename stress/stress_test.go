package stress

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "mojifix/internal/config"
	"mojifix/internal/pipeline"
)

const (
	dirs        = 20
	filesPerDir = 25
)

// genTree 生成 dirs×filesPerDir 个文件：半数为乱码，其余为干净的 UTF-8。
func genTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for d := 0; d < dirs; d++ {
		dir := filepath.Join(root, fmt.Sprintf("Area%02d", d), "Views")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		for f := 0; f < filesPerDir; f++ {
			body := "@model M\n<p>Quản lý hội đồng</p>\n"
			if f%2 == 0 {
				body = "ï»¿@model M\n<p>Quáº£n lÃ½ há»™i Ä‘á»“ng</p>\n"
			}
			name := filepath.Join(dir, fmt.Sprintf("Page%03d.cshtml", f))
			require.NoError(t, os.WriteFile(name, []byte(body), 0o644))
		}
	}
	return root
}

// runOnce 以给定并发度原地修复一棵新生成的树。
func runOnce(t *testing.T, conc int) (time.Duration, *pipeline.Report, error) {
	root := genTree(t)
	cfg := cfgpkg.Defaults()
	cfg.Inputs = []string{root}
	cfg.Concurrency = conc
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return 0, nil, err
	}
	start := time.Now()
	rep, err := pipeline.Run(context.Background(), comp, set, nil)
	return time.Since(start), rep, err
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("short 模式跳过")
	}
	levels := []int{1, 8, 16, 32, 64}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 5
			successes := 0
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				dur, rep, err := runOnce(t, conc)
				if err != nil {
					t.Errorf("run %d: %v", i, err)
					continue
				}
				// 每次运行的结果与并发度无关
				if got := rep.Count(pipeline.StatusChanged); got != dirs*filesPerDir {
					t.Errorf("run %d: changed=%d", i, got)
					continue
				}
				if len(rep.Problems()) != 0 {
					t.Errorf("run %d: problems=%d", i, len(rep.Problems()))
					continue
				}
				successes++
				latencies = append(latencies, dur)
			}
			if successes == 0 {
				t.Fatalf("全部运行失败")
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			p95 := latencies[idx]
			t.Logf("并发%d 成功率%.2f 平均%v 95%%延迟%v", conc, float64(successes)/float64(runs), avg, p95)
		})
	}
}
