package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: mcp-client <server-command> [<args>]")
		fmt.Fprintln(os.Stderr, "Example: mcp-client ./monnet mcp --interval 10s")
		os.Exit(2)
	}

	ctx := context.Background()

	// Start the server as a subprocess
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stderr = os.Stderr
	transport := &mcp.CommandTransport{Command: cmd}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "monnet-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Close()

	fmt.Println("Connected to monnet MCP server!")
	fmt.Println("Available commands:")
	fmt.Println("  /tools                   - List available tools")
	fmt.Println("  /collect                 - Run one cycle now")
	fmt.Println("  /snapshot <family>       - Last stored reading of a family")
	fmt.Println("  /families                - Known and observed families")
	fmt.Println("  /armed                   - Identities suppressing repeats")
	fmt.Println("  /events [limit]          - Recently fired events")
	fmt.Println("  /counts [hours]          - Event counts by name and severity")
	fmt.Println("  /reset <identity>        - Disarm an event identity")
	fmt.Println("  /eval <family> <value>   - Classify a value")
	fmt.Println("  /exit                    - Exit the client")
	fmt.Println()

	// Interactive REPL
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		parts := strings.Fields(input)

		switch parts[0] {
		case "/exit":
			fmt.Println("Goodbye!")
			return

		case "/tools":
			listTools(ctx, session)

		case "/collect":
			callTool(ctx, session, "collect_now", map[string]any{})

		case "/families":
			callTool(ctx, session, "list_families", map[string]any{})

		case "/armed":
			callTool(ctx, session, "list_armed_events", map[string]any{})

		case "/snapshot":
			if len(parts) < 2 {
				fmt.Println("usage: /snapshot <family>")
				continue
			}
			callTool(ctx, session, "get_snapshot", map[string]any{"family": parts[1]})

		case "/events":
			toolArgs := map[string]any{}
			if len(parts) > 1 {
				n, err := strconv.Atoi(parts[1])
				if err != nil {
					fmt.Println("limit must be a number")
					continue
				}
				toolArgs["limit"] = n
			}
			callTool(ctx, session, "recent_events", toolArgs)

		case "/counts":
			toolArgs := map[string]any{}
			if len(parts) > 1 {
				h, err := strconv.Atoi(parts[1])
				if err != nil {
					fmt.Println("hours must be a number")
					continue
				}
				toolArgs["hours"] = h
			}
			callTool(ctx, session, "event_counts", toolArgs)

		case "/reset":
			if len(parts) < 2 {
				fmt.Println("usage: /reset <identity>")
				continue
			}
			callTool(ctx, session, "reset_identity", map[string]any{"identity": parts[1]})

		case "/eval":
			if len(parts) < 3 {
				fmt.Println("usage: /eval <family> <value>")
				continue
			}
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				fmt.Println("value must be a number")
				continue
			}
			callTool(ctx, session, "evaluate_value", map[string]any{"family": parts[1], "value": v})

		default:
			fmt.Printf("unknown command %q, try /tools\n", parts[0])
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Scanner error: %v", err)
	}
}

func listTools(ctx context.Context, session *mcp.ClientSession) {
	fmt.Println("Available Tools:")
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			log.Printf("Error listing tools: %v", err)
			return
		}
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}
	fmt.Println()
}

func callTool(ctx context.Context, session *mcp.ClientSession, toolName string, args map[string]any) {
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		log.Printf("Error calling tool: %v", err)
		return
	}

	printResult(result)
}

func printResult(result *mcp.CallToolResult) {
	if result.IsError {
		fmt.Printf("❌ Error: ")
	} else {
		fmt.Printf("✅ Result: ")
	}

	// Try to pretty-print the content
	for _, content := range result.Content {
		switch v := content.(type) {
		case *mcp.TextContent:
			fmt.Println(v.Text)
		default:
			// Try JSON marshaling for other types
			jsonData, err := json.MarshalIndent(content, "", "  ")
			if err != nil {
				fmt.Printf("%+v\n", content)
			} else {
				fmt.Println(string(jsonData))
			}
		}
	}
	fmt.Println()
}
