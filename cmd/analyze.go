package main

import (
	"fmt"

	"ceiscan/internal/ceiscan"
	"ceiscan/internal/ir"
	"ceiscan/internal/tagger"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var analyzeCommand = &cobra.Command{
	Use:   "analyze",
	Short: "analyze contract IR for CEI ordering violations",
	Long:  ``,
	Run: func(*cobra.Command, []string) {
		if err := analyzeExec(); err != nil {
			fmt.Printf("service err: %v", err)
		} else {
			fmt.Printf("service quit")
		}
	},
}

var (
	ContractFile string
	TableFile    string
	Workers      int
)

func init() {
	analyzeCommand.Flags().StringVar(&ContractFile, "file", "", "contract IR file")
	analyzeCommand.Flags().StringVar(&TableFile, "table", "", "classification table file")
	analyzeCommand.Flags().IntVar(&Workers, "workers", 0, "concurrent function workers, 0 for NumCPU")
	cfgCommand.Flags().StringVar(&ContractFile, "file", "", "contract IR file")
	cfgCommand.Flags().StringVar(&TableFile, "table", "", "classification table file")
}

func analyzeExec() error {
	table, err := tagger.LoadTable(TableFile)
	if err != nil {
		return err
	}
	functions, err := ir.LoadFile(ContractFile)
	if err != nil {
		return err
	}
	log.Infof("loaded %d functions, %d classified targets", len(functions), table.Size())

	scanner := ceiscan.NewScanner(table, Workers)
	rep := scanner.Run(functions)
	fmt.Println(rep)
	return nil
}
