package terms

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mojifix/pkg/contract"
)

func TestApplyInOrder(t *testing.T) {
	tb := Table{{"ab", "X"}, {"X", "Y"}, {"b", "Z"}}
	out, n := tb.Apply("abab b")
	// 顺序替换：后面的规则作用于前面的结果
	assert.Equal(t, "YY Z", out)
	assert.Equal(t, 5, n)
}

func TestLoadKeepsOrder(t *testing.T) {
	tb, err := Load(strings.NewReader("zeta: 1\nalpha: 2\n\"Quên mật khẩu?\": \"Forgot password?\"\n"))
	require.NoError(t, err)
	assert.Equal(t, Table{{"zeta", "1"}, {"alpha", "2"}, {"Quên mật khẩu?", "Forgot password?"}}, tb)

	tb, err = Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tb)
}

func TestLoadRejectsNonMapping(t *testing.T) {
	for _, in := range []string{"- a\n- b\n", "a: [1, 2]\n", "a: b: c\n"} {
		_, err := Load(strings.NewReader(in))
		assert.True(t, errors.Is(err, contract.ErrInvalidInput), in)
	}
}

func TestBuiltin(t *testing.T) {
	assert.Equal(t, []string{"vi-en", "vi-en-garbled"}, BuiltinNames())

	tb, err := Builtin("vi-en")
	require.NoError(t, err)
	require.NotEmpty(t, tb)
	// 长短语必须排在其子串之前
	idx := map[string]int{}
	for i, p := range tb {
		idx[p.From] = i
	}
	assert.Less(t, idx["Thêm thành viên"], idx["Thêm"])
	assert.Less(t, idx["Quản lý hội đồng"], idx["Hủy"])

	out, _ := tb.Apply("<h1>Quản lý hội đồng</h1><button>Thêm thành viên</button><a>Thêm</a>")
	assert.Equal(t, "<h1>Board Management</h1><button>Add Member</button><a>Add</a>", out)

	g, err := Builtin("vi-en-garbled")
	require.NoError(t, err)
	out, _ = g.Apply("<span>Th\ufffdnh vi\ufffdn</span> <b>H?y</b>")
	assert.Equal(t, "<span>Member</span> <b>Cancel</b>", out)

	_, err = Builtin("fr-en")
	assert.True(t, errors.Is(err, contract.ErrUnknownComponent))
}

// 内置表中长短语必须排在其子串之前，否则永远匹配不到
func TestBuiltinLongerPhrasesFirst(t *testing.T) {
	for _, name := range BuiltinNames() {
		tb, err := Builtin(name)
		require.NoError(t, err)
		for i := range tb {
			for j := i + 1; j < len(tb); j++ {
				assert.False(t, strings.Contains(tb[j].From, tb[i].From), "%s: %q 应排在 %q 之前", name, tb[j].From, tb[i].From)
			}
		}
	}
}

func TestNewMergeOrderAndDedup(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "t.yaml")
	require.NoError(t, os.WriteFile(p, []byte("\"Lưu\": \"Store\"\nfoo: bar\n"), 0o644))

	f, err := New(&Options{
		Builtin:   []string{"vi-en"},
		TablePath: p,
		Inline:    []Pair{{"foo", "baz"}, {"qux", "quux"}},
	})
	require.NoError(t, err)
	out, note, err := f.Fix(context.Background(), "a.cshtml", "Lưu foo qux")
	require.NoError(t, err)
	// 内置表先于文件表，文件表先于 inline；重复键取先出现者
	assert.Equal(t, "Save bar quux", out)
	assert.Equal(t, contract.Note("terms×3"), note)
}

func TestNewErrors(t *testing.T) {
	_, err := New(&Options{Inline: []Pair{{"", "x"}}})
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))

	_, err = New(&Options{TablePath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFixNoMatch(t *testing.T) {
	f, err := New(&Options{Inline: []Pair{{"a", "b"}}, AllowExts: []string{".js"}})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())

	out, note, err := f.Fix(context.Background(), "x.js", "zzz")
	require.NoError(t, err)
	assert.Equal(t, "zzz", out)
	assert.Empty(t, note)

	out, _, err = f.Fix(context.Background(), "x.cs", "aaa")
	require.NoError(t, err)
	assert.Equal(t, "aaa", out)
}
