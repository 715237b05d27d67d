// Command reqflow turns a requirement into reviewed user stories, a design
// document and code.
//
// Usage:
//
//	reqflow start "<requirement>"        generate stories and stop at review
//	reqflow review <id> --approve        approve the stage awaiting review
//	reqflow review <id> --feedback "..." revise the stage
//	reqflow advance <id>                 generate the next stage
//	reqflow interactive "<requirement>"  review every stage in the terminal
//	reqflow run "<requirement>"          approve every stage automatically
//	reqflow show|list|delete|export      inspect saved workflows
package main

import "reqflow/internal/cli"

func main() {
	cli.Execute()
}
