package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/router"
	"github.com/BTreeMap/DocFlow/internal/util"
	"github.com/BTreeMap/DocFlow/internal/workflow"
)

const chatHelp = `Commands:
  /agents              list agents
  /agent <name>        select the agent free text goes to
  /start [document]    start a conversation with the selected agent
  /end                 end the active conversation
  /pause               pause the active conversation
  /resume <session>    resume a paused conversation
  /sessions            list conversations
  /status              show progress of the active conversation
  /next                move the active document to its next phase if it is ready
  /auto on|off         keep talking to the selected agent without /start
  /help                show this help
  /quit                exit
Anything else is routed to the active conversation or the selected agent.`

var (
	agentColor  = color.New(color.FgCyan)
	promptColor = color.New(color.FgGreen, color.Bold)
	noteColor   = color.New(color.FgHiBlack)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var agentName, docPath string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive authoring session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			r := &repl{app: a, in: cmd.InOrStdin(), out: cmd.OutOrStdout(), docPath: docPath}
			if agentName != "" {
				if err := a.agents.Select(agentName); err != nil {
					return err
				}
			}
			return r.run(ctx)
		},
	}
	cmd.Flags().StringVar(&agentName, "agent", "", "agent to select at startup")
	cmd.Flags().StringVar(&docPath, "doc", "", "document to author when /start has no argument")
	return cmd
}

// repl is the interactive chat loop.
type repl struct {
	app     *app
	in      io.Reader
	out     io.Writer
	docPath string
}

func (r *repl) run(ctx context.Context) error {
	noteColor.Fprintln(r.out, "DocFlow chat. Type /help for commands.")
	if id := r.app.router.ActiveSessionID(); id != "" {
		noteColor.Fprintf(r.out, "Resumed conversation %s.\n", id)
	}

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), models.MaxResponseLength+1)
	for {
		promptColor.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}

		name, arg, isCommand := parseCommand(line)
		if !isCommand {
			r.route(ctx, line)
			continue
		}
		if name == "quit" || name == "exit" {
			return nil
		}
		if err := r.command(ctx, name, arg); err != nil {
			errColor.Fprintf(r.out, "Error: %v\n", err)
		}
	}
}

// parseCommand splits "/name arg..." into its parts.
func parseCommand(line string) (name, arg string, ok bool) {
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return strings.ToLower(name), strings.TrimSpace(arg), true
}

func (r *repl) command(ctx context.Context, name, arg string) error {
	a := r.app
	switch name {
	case "help":
		fmt.Fprintln(r.out, chatHelp)
	case "agents":
		current, _ := a.agents.CurrentAgent()
		for _, ag := range a.agents.List() {
			marker := "  "
			if ag.Name == current.Name {
				marker = "* "
			}
			fmt.Fprintf(r.out, "%s%-22s %-15s %s\n", marker, ag.Name, ag.Phase, ag.Description)
		}
	case "agent":
		if arg == "" {
			return fmt.Errorf("usage: /agent <name>")
		}
		if err := a.agents.Select(arg); err != nil {
			return err
		}
		noteColor.Fprintf(r.out, "Selected %s.\n", arg)
	case "start":
		return r.start(ctx, arg)
	case "end":
		summary, err := a.router.EndActiveConversation(ctx)
		if err != nil {
			return err
		}
		if summary == nil {
			warnColor.Fprintln(r.out, "No active conversation.")
			return nil
		}
		printSummary(r.out, summary)
	case "pause":
		id := a.router.ActiveSessionID()
		if id == "" {
			warnColor.Fprintln(r.out, "No active conversation.")
			return nil
		}
		if err := a.engine.PauseConversation(ctx, id); err != nil {
			return err
		}
		a.router.ClearActiveSession()
		noteColor.Fprintf(r.out, "Paused %s. Resume with /resume %s\n", id, id)
	case "resume":
		return r.resume(ctx, arg)
	case "sessions":
		return r.sessions(ctx)
	case "status":
		return r.status(ctx)
	case "next":
		return r.next(ctx)
	case "auto":
		return r.auto(ctx, arg)
	default:
		return fmt.Errorf("unknown command /%s, try /help", name)
	}
	return nil
}

func (r *repl) route(ctx context.Context, text string) {
	a := r.app
	if !a.router.HasActiveSession() {
		if _, err := a.autoSession.SelectFallbackAgent(ctx, a.agents); err != nil {
			a.logger.Warn("Auto-session agent not selected", "error", err)
		}
	}

	res := a.router.RouteUserInput(ctx, text)
	if err := a.autoSession.RecordActivity(ctx); err != nil {
		a.logger.Warn("Auto-session activity not recorded", "error", err)
	}

	switch res.RoutedTo {
	case router.RoutedToConversation:
		printResponse(r.out, res.AgentName, res.Response)
		if !res.ShouldContinue {
			noteColor.Fprintln(r.out, "Nothing left to ask. Use /status, /next or /end.")
		}
	case router.RoutedToAgent:
		agentColor.Fprintf(r.out, "[%s] ", res.AgentName)
		fmt.Fprintln(r.out, res.AgentResponse)
	default:
		errColor.Fprintln(r.out, res.Error)
		if res.Error == router.NoActiveAgentMessage {
			noteColor.Fprintln(r.out, "Select an agent with /agent <name>.")
		}
	}
}

func (r *repl) start(ctx context.Context, doc string) error {
	a := r.app
	agent, ok := a.agents.CurrentAgent()
	if !ok {
		return fmt.Errorf("select an agent first with /agent <name>")
	}
	if doc == "" {
		doc = r.docPath
	}
	if doc == "" {
		doc = filepath.Join(a.cfg.StateDir, "docs", string(agent.Phase)+".md")
	}

	sess, err := a.router.StartConversation(ctx, agent.Name, models.ConversationContext{
		DocumentPath: doc,
		Phase:        agent.Phase,
	})
	if err != nil {
		return err
	}
	noteColor.Fprintf(r.out, "Started %s with %s, writing to %s.\n", sess.SessionID, agent.DisplayName, doc)
	if q, ok := sess.CurrentQuestion(); ok {
		printQuestion(r.out, agent.Name, q)
	}
	return nil
}

func (r *repl) resume(ctx context.Context, id string) error {
	a := r.app
	if id == "" {
		return fmt.Errorf("usage: /resume <session>")
	}
	if err := a.engine.ResumeConversation(ctx, id); err != nil {
		return err
	}
	sess, err := a.engine.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s disappeared", id)
	}
	a.router.AdoptSession(sess, true)
	if err := a.agents.Select(sess.AgentName); err != nil {
		a.logger.Warn("Resumed session's agent is not configured", "agent", sess.AgentName)
	}
	noteColor.Fprintf(r.out, "Resumed %s.\n", id)
	if q, ok := sess.CurrentQuestion(); ok {
		printQuestion(r.out, sess.AgentName, q)
	}
	return nil
}

func (r *repl) sessions(ctx context.Context) error {
	list, err := r.app.engine.ListSessions(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		noteColor.Fprintln(r.out, "No conversations yet.")
		return nil
	}
	active := r.app.router.ActiveSessionID()
	for _, s := range list {
		state := "ended"
		if s.State.IsActive {
			state = "active"
		}
		marker := "  "
		if s.SessionID == active {
			marker = "* "
		}
		fmt.Fprintf(r.out, "%s%s  %-22s %-7s score %.2f  %s\n", marker, s.SessionID, s.AgentName, state,
			s.State.CompletionScore, s.Context.DocumentPath)
	}
	return nil
}

func (r *repl) status(ctx context.Context) error {
	a := r.app
	id := a.router.ActiveSessionID()
	if id == "" {
		warnColor.Fprintln(r.out, "No active conversation.")
		return nil
	}
	snap, err := a.engine.CalculateProgress(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Session %s (%s, %s phase)\n", id, snap.AgentName, snap.Phase)
	fmt.Fprintf(r.out, "  completion score  %.2f\n", snap.CompletionScore)
	fmt.Fprintf(r.out, "  questions         %d asked, %d answered\n", snap.QuestionsAsked, snap.QuestionsAnswered)
	if snap.EstimatedTimeRemaining != "" {
		fmt.Fprintf(r.out, "  time remaining    %s\n", snap.EstimatedTimeRemaining)
	}

	sess, err := a.engine.GetSession(ctx, id)
	if err != nil || sess == nil || sess.Context.DocumentPath == "" {
		return err
	}
	st, err := a.orchestrator.EvaluatePhaseCompletion(ctx, sess.State.CurrentPhase, sess.Context.DocumentPath)
	if err != nil {
		return err
	}
	printPhaseStatus(r.out, st)
	return nil
}

func (r *repl) next(ctx context.Context) error {
	a := r.app
	id := a.router.ActiveSessionID()
	if id == "" {
		return fmt.Errorf("no active conversation")
	}
	sess, err := a.engine.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess == nil || sess.Context.DocumentPath == "" {
		return fmt.Errorf("the active conversation has no document")
	}

	st, err := a.orchestrator.EvaluatePhaseCompletion(ctx, sess.State.CurrentPhase, sess.Context.DocumentPath)
	if err != nil {
		return err
	}
	suggestion := a.orchestrator.SuggestNextPhase(sess.State.CurrentPhase, st)
	if !st.ReadyForTransition || suggestion.NextPhase == st.Phase {
		printPhaseStatus(r.out, st)
		warnColor.Fprintln(r.out, suggestion.Reason)
		return nil
	}

	result := a.orchestrator.ExecutePhaseTransition(ctx, suggestion)
	if !result.Success {
		return fmt.Errorf("%s", result.Message)
	}
	if _, err := a.router.EndConversation(ctx, id); err != nil {
		return err
	}
	agentColor.Fprintln(r.out, result.Message)
	for _, w := range result.Warnings {
		warnColor.Fprintf(r.out, "  ! %s\n", w)
	}
	for _, step := range result.NextSteps {
		fmt.Fprintf(r.out, "  - %s\n", step)
	}
	if err := a.agents.Select(suggestion.RecommendedAgent); err == nil {
		noteColor.Fprintf(r.out, "Selected %s (about %s). Use /start to continue.\n",
			suggestion.RecommendedAgent, suggestion.EstimatedDuration)
	}
	return nil
}

func (r *repl) auto(ctx context.Context, arg string) error {
	a := r.app
	switch strings.ToLower(arg) {
	case "on":
		agent, ok := a.agents.CurrentAgent()
		if !ok {
			return fmt.Errorf("select an agent first with /agent <name>")
		}
		if err := a.autoSession.Enable(ctx, agent.Name, r.docPath); err != nil {
			return err
		}
		noteColor.Fprintf(r.out, "Auto-session on for %s (expires after %s idle).\n",
			agent.Name, util.FormatDuration(a.cfg.AutoSession.Timeout))
	case "off":
		if err := a.autoSession.Disable(ctx); err != nil {
			return err
		}
		noteColor.Fprintln(r.out, "Auto-session off.")
	case "":
		st, err := a.autoSession.State(ctx)
		if err != nil {
			return err
		}
		if !st.IsActive {
			fmt.Fprintln(r.out, "Auto-session is off.")
			return nil
		}
		fmt.Fprintf(r.out, "Auto-session on for %s, %d messages.\n", st.Context.AgentName, st.MessageCount)
	default:
		return fmt.Errorf("usage: /auto on|off")
	}
	return nil
}

func printQuestion(w io.Writer, agentName string, q models.Question) {
	agentColor.Fprintf(w, "[%s] ", agentName)
	fmt.Fprintln(w, q.Text)
	if len(q.Examples) > 0 {
		noteColor.Fprintf(w, "  e.g. %s\n", strings.Join(q.Examples, "; "))
	}
}

func printResponse(w io.Writer, agentName string, resp *models.ConversationResponse) {
	if resp == nil {
		return
	}
	for _, u := range resp.DocumentUpdates {
		noteColor.Fprintf(w, "  ✎ %s\n", u.Section)
	}
	if resp.AgentMessage != "" {
		agentColor.Fprintf(w, "[%s] ", agentName)
		fmt.Fprintln(w, resp.AgentMessage)
	}
	for _, s := range resp.WorkflowSuggestions {
		warnColor.Fprintf(w, "  → next: %s with %s (%s)\n", s.NextPhase, s.RecommendedAgent, s.Reason)
	}
}

func printSummary(w io.Writer, s *models.ConversationSummary) {
	agentColor.Fprintf(w, "Conversation %s ended.\n", s.SessionID)
	fmt.Fprintf(w, "  answered %d of %d questions in %s, score %.2f\n",
		s.QuestionsAnswered, s.QuestionsAsked, util.FormatDuration(s.Duration), s.CompletionScore)
}

func printPhaseStatus(w io.Writer, st models.PhaseCompletionStatus) {
	fmt.Fprintf(w, "Phase %s: %.0f%% of sections, quality %.2f\n", st.Phase, st.CompletionPercentage, st.QualityScore)
	if len(st.MissingSections) > 0 {
		warnColor.Fprintf(w, "  missing: %s\n", strings.Join(st.MissingSections, ", "))
	}
	if st.ReadyForTransition {
		if next, ok := workflow.NextPhase(st.Phase); ok {
			agentColor.Fprintf(w, "  ready for %s\n", next)
		}
	}
}
