package extract

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

const (
	slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// SlugLength 书籍slug的固定长度
	SlugLength = 5
)

// StableSlug 由种子确定性地生成定长slug
// md5 的前10个十六进制字符转为整数,再按36进制字母表从低位取 n 个字符
func StableSlug(seed string, n int) string {
	sum := md5.Sum([]byte(seed))
	h := hex.EncodeToString(sum[:])
	num, _ := strconv.ParseUint(h[:10], 16, 64)

	base := uint64(len(slugAlphabet))
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = slugAlphabet[num%base]
		num /= base
	}
	return string(out)
}

// BookSlug 书籍slug: 优先站点书号,否则 host + "/" + title
func BookSlug(siteBookID, host, title string) string {
	seed := siteBookID
	if seed == "" {
		seed = host + "/" + title
	}
	return StableSlug(seed, SlugLength)
}
