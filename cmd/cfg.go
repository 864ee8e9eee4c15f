package main

import (
	"fmt"

	"ceiscan/internal/ceiscan"
	"ceiscan/internal/ir"
	"ceiscan/internal/tagger"

	"github.com/spf13/cobra"
)

var cfgCommand = &cobra.Command{
	Use:   "cfg",
	Short: "build and print the control-flow graph of every function",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := dumpCFG(); err != nil {
			fmt.Printf("service err: %v", err)
		} else {
			fmt.Printf("service quit")
		}
	},
}

func dumpCFG() error {
	table, err := tagger.LoadTable(TableFile)
	if err != nil {
		return err
	}
	functions, err := ir.LoadFile(ContractFile)
	if err != nil {
		return err
	}

	scanner := ceiscan.NewScanner(table, 0)
	for _, graph := range scanner.BuildGraphs(functions) {
		fmt.Println(graph)
	}
	return nil
}
