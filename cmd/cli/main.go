package main

import (
	"fmt"
	"os"
	"strconv"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("agritrace cli 0.1.0")
	case "health":
		out, err := apiHealth()
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "show":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agritrace show <batch_id>\n")
			os.Exit(1)
		}
		out, err := getBatch(args[0])
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "batches":
		status := ""
		if len(args) > 0 {
			status = args[0]
		}
		out, err := listBatches(status)
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "verify":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agritrace verify <batch_id>\n")
			os.Exit(1)
		}
		out, err := verifyBatch(args[0])
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "history":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agritrace history <batch_id>\n")
			os.Exit(1)
		}
		out, err := batchHistory(args[0])
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "sync":
		limit := 0
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				limit = n
			}
		}
		out, err := runSync(limit)
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "overview":
		out, err := analyticsOverview()
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	case "cache-clear":
		out, err := clearCache()
		exitOnError(err)
		fmt.Println(prettyJSON(out))
	default:
		printUsage()
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`agritrace - 农产品溯源命令行工具

用法:
  agritrace version             打印版本
  agritrace health              检查 API 服务健康状态
  agritrace show <batch_id>     查看批次详情与流转链
  agritrace batches [status]    列出批次（可按状态过滤）
  agritrace verify <batch_id>   核验批次的链上登记
  agritrace history <batch_id>  查询批次的链上历史
  agritrace sync [limit]        触发未锚定批次的批量同步
  agritrace overview            查看统计概览
  agritrace cache-clear         清空分析与核验缓存

环境变量:
  AGRITRACE_API_URL   API 地址（默认 http://localhost:8080）
  AGRITRACE_ACTOR     开发模式请求头身份 ID（默认 cli）
  AGRITRACE_ROLE      开发模式请求头角色（默认 admin）`)
}
