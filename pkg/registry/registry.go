package registry

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"mojifix/pkg/contract"
	fhdr "mojifix/plugins/fixer/header"
	fmoj "mojifix/plugins/fixer/mojibake"
	fterms "mojifix/plugins/fixer/terms"
	ftr "mojifix/plugins/fixer/transliterate"
	rfs "mojifix/plugins/reader/filesystem"
	wfs "mojifix/plugins/writer/filesystem"
)

// strictDecode: 将配置里的原样 options 严格解码到 v，拒绝未知字段。
// 允许弱类型（"4" → 4）与逗号分隔字符串 → 切片，便于 ENV 覆盖。
func strictDecode(raw map[string]any, v any) error {
	if len(raw) == 0 {
		// 保持零值（默认选项）
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidInput, err)
	}
	return nil
}

// NewReader 工厂签名：接收原样 options。
type NewReader func(raw map[string]any) (contract.Reader, error)

// NewWriter 工厂签名：接收原样 options。
type NewWriter func(raw map[string]any) (contract.Writer, error)

// NewFixer 工厂签名：接收原样 options。
type NewFixer func(raw map[string]any) (contract.Fixer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw map[string]any) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 原地原子替换 / 镜像目录 / STDOUT
	"fs": func(raw map[string]any) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
}

// Fixer 工厂注册表。
var Fixer = map[string]NewFixer{
	"header": func(raw map[string]any) (contract.Fixer, error) {
		var opts fhdr.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return fhdr.New(&opts)
	},
	"mojibake": func(raw map[string]any) (contract.Fixer, error) {
		var opts fmoj.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return fmoj.New(&opts)
	},
	"terms": func(raw map[string]any) (contract.Fixer, error) {
		var opts fterms.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return fterms.New(&opts)
	},
	// transliterate: 无可失败的选项
	"transliterate": func(raw map[string]any) (contract.Fixer, error) {
		var opts ftr.Options
		if err := strictDecode(raw, &opts); err != nil {
			return nil, err
		}
		return ftr.New(&opts), nil
	},
}

// FixerNames 返回已注册的 fixer 名（排序）。
func FixerNames() []string {
	names := make([]string, 0, len(Fixer))
	for n := range Fixer {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BuildFixer 按名称构造 fixer；未注册时返回 ErrUnknownComponent。
func BuildFixer(name string, raw map[string]any) (contract.Fixer, error) {
	f, ok := Fixer[name]
	if !ok {
		return nil, fmt.Errorf("%w: fixer %q", contract.ErrUnknownComponent, name)
	}
	fx, err := f(raw)
	if err != nil {
		return nil, fmt.Errorf("fixer %s: %w", name, err)
	}
	return fx, nil
}
