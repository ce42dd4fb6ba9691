package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var documentListFilters []string

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect indexed documents",
	Long:  `List, view, or open indexed résumés.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents matching filters",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "List the stored chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentContentCmd = &cobra.Command{
	Use:   "content [doc-id]",
	Short: "Print document content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentContent,
}

var documentOpenCmd = &cobra.Command{
	Use:   "open [doc-id]",
	Short: "Open the source file in the default application",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentOpen,
}

func init() {
	documentListCmd.Flags().StringArrayVarP(&documentListFilters, "filter", "f", nil, "filter as field=op:value (repeatable)")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentContentCmd)
	documentCmd.AddCommand(documentOpenCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	filter, err := parseFilters(documentListFilters)
	if err != nil {
		return err
	}

	docs, err := documentService.List(commandContext(cmd), filter)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  v%d  %d chunks\n", docs[i].ID, docs[i].Version, docs[i].ChunkCount)
		if summary := fieldSummary(docs[i].Fields); summary != "" {
			cmd.Printf("    %s\n", summary)
		}
	}

	cmd.Printf("\nTotal: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	doc, err := documentService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Version:  %d\n", doc.Version)
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	if doc.Source != "" {
		cmd.Printf("  Source:   %s\n", doc.Source)
	}
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Fields) > 0 {
		keys := make([]string, 0, len(doc.Fields))
		for k := range doc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		cmd.Println("\n  Fields:")
		for _, k := range keys {
			cmd.Printf("    %s: %v\n", k, doc.Fields[k])
		}
	}

	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	chunks, err := documentService.Chunks(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to list chunks: %w", err)
	}

	for i := range chunks {
		cmd.Printf("  #%d  %s  v%d\n", chunks[i].Sequence, chunks[i].ID, chunks[i].Version)
		cmd.Printf("      %s\n", snippet(chunks[i].Text, 120))
	}
	cmd.Printf("\nTotal: %d chunks\n", len(chunks))
	return nil
}

func runDocumentContent(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	content, err := documentService.GetContent(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document content: %w", err)
	}

	cmd.Println(content)
	return nil
}

func runDocumentOpen(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return notConfigured("document")
	}

	docID := args[0]
	if err := documentService.Open(commandContext(cmd), docID); err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}

	cmd.Printf("Opened %s\n", docID)
	return nil
}
