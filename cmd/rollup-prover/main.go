// rollup-prover 证明作业网关
//
// 用法:
//
//	rollup-prover serve --config configs/production/prover.json
//	rollup-prover serve --env development
//	rollup-prover version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
