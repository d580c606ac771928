package contract

import (
	"context"
	"io"
)

// Writer: 将修复后的字节持久化（原地替换/镜像目录/STDOUT）。
// 约束：
//  1. 同一 Source 单写者；
//  2. 按字节透传，不读取/修改业务内容；
//  3. ctx 取消需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, src Source, r io.Reader) error
}
