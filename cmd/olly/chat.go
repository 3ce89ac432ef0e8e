package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/childreth/Olly/core/gateway"
	"github.com/childreth/Olly/internal/conversation"
	"github.com/childreth/Olly/providers/ai"
)

// chatFlags are shared by ask and stream.
type chatFlags struct {
	provider     string
	model        string
	system       string
	conversation string
	maxTokens    int
	temperature  float64
	noWebSearch  bool
}

func (f *chatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.provider, "provider", "p", string(ai.ProviderClaude), "provider to use: claude, perplexity or ollama")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model name (default is the provider's default)")
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "system prompt")
	cmd.Flags().StringVarP(&f.conversation, "conversation", "c", "", "JSON file with earlier messages; the prompt is appended as the last user turn")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens to generate (default from config)")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", 0, "sampling temperature (default from config)")
	cmd.Flags().BoolVar(&f.noWebSearch, "no-web-search", false, "disable Claude's web search tool for this request")
}

// request builds the chat request from flags, the optional transcript and
// the prompt arguments.
func (f *chatFlags) request(cmd *cobra.Command, a *app, args []string) (ai.ChatRequest, error) {
	name, err := a.provider(f.provider)
	if err != nil {
		return ai.ChatRequest{}, err
	}

	request := ai.ChatRequest{Provider: name}
	if f.conversation != "" {
		transcript, err := conversation.Load(f.conversation)
		if err != nil {
			return ai.ChatRequest{}, err
		}
		request = transcript.Request(name)
	}

	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt != "" {
		request.Messages = append(request.Messages, ai.Message{Role: ai.RoleUser, Content: ai.TextContent(prompt)})
	}
	if len(request.Messages) == 0 {
		return ai.ChatRequest{}, errors.New("nothing to send: pass a prompt or --conversation")
	}

	if f.system != "" {
		request.System = f.system
	}
	defaults := a.providerConfig(name)
	request.Model = f.model
	if request.Model == "" {
		request.Model = defaults.Model
	}
	request.MaxTokens = f.maxTokens
	if cmd.Flags().Changed("temperature") {
		request.Temperature = ai.Float64(f.temperature)
	} else {
		request.Temperature = ai.Float64(defaults.Temperature)
	}
	if f.noWebSearch {
		request.ToolConfig = &ai.ToolConfig{}
	}
	return request, nil
}

func newAskCmd(a *app) *cobra.Command {
	var flags chatFlags
	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send a prompt and print the complete answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := flags.request(cmd, a, args)
			if err != nil {
				return err
			}
			response, err := a.gateway.Completion(cmd.Context(), request)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, response.Content)
			printCitations(out, response.Citations)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newStreamCmd(a *app) *cobra.Command {
	var flags chatFlags
	cmd := &cobra.Command{
		Use:   "stream [prompt...]",
		Short: "Send a prompt and print the answer as it arrives",
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := flags.request(cmd, a, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printer := &streamPrinter{out: out}
			response, err := a.gateway.StreamCompletionTo(cmd.Context(), request, printer)
			if err != nil {
				if response != nil && response.Content != "" {
					fmt.Fprintln(out)
				}
				return err
			}
			fmt.Fprintln(out)
			printCitations(out, printer.citations)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// streamPrinter writes text deltas as they arrive and keeps citations for
// the summary printed after the answer.
type streamPrinter struct {
	out       io.Writer
	citations []ai.Citation
}

var _ gateway.Sink = (*streamPrinter)(nil)

func (p *streamPrinter) Send(_ context.Context, event ai.Event) error {
	switch event.Type {
	case ai.EventTextDelta:
		_, err := io.WriteString(p.out, event.Text)
		return err
	case ai.EventCitation:
		if event.Citation != nil {
			p.citations = append(p.citations, *event.Citation)
		}
	case ai.EventDone:
		if len(event.Citations) > 0 {
			p.citations = event.Citations
		}
	}
	return nil
}

func printCitations(out io.Writer, citations []ai.Citation) {
	if len(citations) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for i, citation := range citations {
		label := citation.Title
		if label == "" {
			label = citation.URL
		}
		if label == citation.URL || citation.URL == "" {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, label)
			continue
		}
		fmt.Fprintf(out, "  [%d] %s (%s)\n", i+1, label, citation.URL)
	}
}
