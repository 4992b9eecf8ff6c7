package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeObject(t *testing.T) {
	type companyReply struct {
		IsCompanyPage bool   `json:"isCompanyPage"`
		CompanyName   string `json:"companyName"`
	}

	t.Run("strict parse", func(t *testing.T) {
		var reply companyReply
		err := DecodeObject(`{"isCompanyPage":true,"companyName":"株式会社テスト"}`, &reply)
		require.NoError(t, err)
		require.True(t, reply.IsCompanyPage)
		require.Equal(t, "株式会社テスト", reply.CompanyName)
	})

	t.Run("object wrapped in prose", func(t *testing.T) {
		raw := "はい、分析しました。\n{\"isCompanyPage\": true, \"companyName\": \"山田商事\"}\n以上です。"
		var reply companyReply
		require.NoError(t, DecodeObject(raw, &reply))
		require.Equal(t, "山田商事", reply.CompanyName)
	})

	t.Run("object in code fence", func(t *testing.T) {
		raw := "```json\n{\"isCompanyPage\": false, \"companyName\": \"\"}\n```"
		var reply companyReply
		require.NoError(t, DecodeObject(raw, &reply))
		require.False(t, reply.IsCompanyPage)
	})

	t.Run("braces inside string values", func(t *testing.T) {
		raw := `reply: {"companyName": "braces {inside} a value", "isCompanyPage": true} trailing`
		var reply companyReply
		require.NoError(t, DecodeObject(raw, &reply))
		require.Equal(t, "braces {inside} a value", reply.CompanyName)
	})

	t.Run("escaped quotes inside strings", func(t *testing.T) {
		raw := `{"companyName": "say \"hello\" {", "isCompanyPage": true}`
		var reply companyReply
		require.NoError(t, DecodeObject(raw, &reply))
		require.Equal(t, `say "hello" {`, reply.CompanyName)
	})

	t.Run("no object at all", func(t *testing.T) {
		var reply companyReply
		require.ErrorIs(t, DecodeObject("すみません、判断できませんでした。", &reply), ErrNoJSON)
		require.ErrorIs(t, DecodeObject("", &reply), ErrNoJSON)
		require.ErrorIs(t, DecodeObject("   ", &reply), ErrNoJSON)
	})

	t.Run("unbalanced braces", func(t *testing.T) {
		var reply companyReply
		require.ErrorIs(t, DecodeObject(`{"companyName": "truncated`, &reply), ErrNoJSON)
	})
}
