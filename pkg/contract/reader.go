package contract

import "context"

// Reader: 输入源抽象（文件/目录/STDIN）。
// 约束：
// 1) 仅枚举候选文件，不读取内容、不解码；
// 2) 按稳定顺序回调，FileID 去平台差异化；
// 3) 单个条目的失败通过 Source.Err 上报，不中断遍历；
// 4) 不在内部起并发。
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(src Source) error) error
}
