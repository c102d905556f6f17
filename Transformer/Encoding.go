package Transformer

import (
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

func GbkToUtf8(s string) string {
	return decodeWith(simplifiedchinese.GBK, s)
}

// decoderFor 根据 .cpg 内容选择解码器，UTF-8 和未知编码返回 nil
func decoderFor(cpg string) encoding.Encoding {
	switch strings.ToUpper(strings.TrimSpace(cpg)) {
	case "GBK", "CP936", "936", "GB2312":
		return simplifiedchinese.GBK
	case "GB18030":
		return simplifiedchinese.GB18030
	case "BIG5", "CP950", "950":
		return traditionalchinese.Big5
	default:
		return nil
	}
}

func decodeWith(enc encoding.Encoding, s string) string {
	if enc == nil {
		return s
	}
	out, _, err := transform.String(enc.NewDecoder(), s)
	if err != nil {
		// 解码失败保留原文
		return s
	}
	return out
}
