package textenc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"mojifix/pkg/contract"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"latin1", "ISO-8859-1", "windows-1252", " CP1252 ", "windows-1258"} {
		cm, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, cm)
	}
	_, err := Lookup("utf-16")
	assert.True(t, errors.Is(err, contract.ErrUnknownEncoding))
}

func TestEncodeStrict(t *testing.T) {
	b, ok := EncodeStrict(charmap.ISO8859_1, "Tiêng")
	require.True(t, ok)
	assert.Equal(t, []byte{'T', 'i', 0xEA, 'n', 'g'}, b)

	// ế (U+1EBF) 不在 latin1 内
	_, ok = EncodeStrict(charmap.ISO8859_1, "Tiếng")
	assert.False(t, ok)

	// € 只在 windows-1252 中可表示
	_, ok = EncodeStrict(charmap.ISO8859_1, "€")
	assert.False(t, ok)
	b, ok = EncodeStrict(charmap.Windows1252, "€")
	require.True(t, ok)
	assert.Equal(t, []byte{0x80}, b)
}

func TestDecodeStrict(t *testing.T) {
	s, ok := DecodeStrict(charmap.Windows1252, []byte{0xC3, 0xAA})
	require.True(t, ok)
	assert.Equal(t, "Ãª", s)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		raw       []byte
		fallbacks []string
		wantText  string
		wantBOM   bool
		wantEnc   string
	}{
		{"纯 ASCII", []byte("using System;"), nil, "using System;", false, UTF8},
		{"UTF-8 带 BOM", append([]byte{0xEF, 0xBB, 0xBF}, "@model X"...), nil, "@model X", true, UTF8},
		{"只剥离一个 BOM", []byte("\xEF\xBB\xBF\xEF\xBB\xBFx"), nil, "\ufeffx", true, UTF8},
		{"越南语 UTF-8", []byte("Quản lý"), nil, "Quản lý", false, UTF8},
		{"latin1 回退", []byte{'Q', 'u', 0xE1, 'n'}, []string{"latin1"}, "Quán", false, "latin1"},
		{"BOM 后非 UTF-8 回退整段", []byte{0xEF, 0xBB, 0xBF, 0xE9}, []string{"windows-1252"}, "ï»¿é", false, "windows-1252"},
		{"未定义字节落到 latin1", []byte("Thi\x90t"), []string{"windows-1252", "latin1"}, "Thi\u0090t", false, "latin1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decode(tt.raw, tt.fallbacks)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, d.Text)
			assert.Equal(t, tt.wantBOM, d.BOM)
			assert.Equal(t, tt.wantEnc, d.Encoding)
		})
	}
}

func TestDecodeUndecodable(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xFE, 0x00}, nil)
	assert.True(t, errors.Is(err, contract.ErrUndecodable))

	// windows-1252 不定义 0x90
	_, err = Decode([]byte("Thi\x90t"), []string{"windows-1252"})
	assert.True(t, errors.Is(err, contract.ErrUndecodable))

	_, err = Decode([]byte{0xFF}, []string{"nope"})
	assert.True(t, errors.Is(err, contract.ErrUnknownEncoding))
}

func TestBOMPolicy(t *testing.T) {
	p, err := ParseBOMPolicy("")
	require.NoError(t, err)
	assert.Equal(t, BOMAlways, p)
	_, err = ParseBOMPolicy("sometimes")
	assert.True(t, errors.Is(err, contract.ErrInvalidInput))

	tests := []struct {
		policy  BOMPolicy
		had     bool
		want    bool
		rewrite bool
	}{
		{BOMAlways, false, true, true},
		{BOMAlways, true, true, false},
		{BOMPreserve, false, false, false},
		{BOMPreserve, true, true, false},
		{BOMStrip, true, false, true},
		{BOMStrip, false, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.policy.WantBOM(tt.had), "%s/%v", tt.policy, tt.had)
		assert.Equal(t, tt.rewrite, tt.policy.ForcesRewrite(tt.had), "%s/%v", tt.policy, tt.had)
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, []byte("abc"), Encode("abc", false))
	assert.Equal(t, []byte("\xEF\xBB\xBFabc"), Encode("abc", true))
}
