package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Naveen-807/Franky-Docs-sub000/command"
	"github.com/Naveen-807/Franky-Docs-sub000/common"
	"github.com/Naveen-807/Franky-Docs-sub000/docs"
	"github.com/Naveen-807/Franky-Docs-sub000/repo"
)

const executePrefix = "!execute"

// runChat answers unanswered rows in each document's Chat table. A
// message starting with !execute queues a real command through the
// approval pipeline; anything else gets a suggestion.
func (e *Engine) runChat(ctx context.Context) error {
	tracked, err := e.store.ListDocs()
	if err != nil {
		return err
	}
	for i := range tracked {
		if err := e.chatDoc(ctx, tracked[i].DocID); err != nil {
			common.DocLogger("chat", tracked[i].DocID).Warnf("chat pass failed: %v", err)
		}
	}
	return nil
}

func (e *Engine) chatDoc(ctx context.Context, docID string) error {
	tables, err := e.backend.LoadTables(ctx, docID)
	if err != nil {
		return err
	}
	chat := tables[docs.TableChat]
	if chat == nil {
		return nil
	}

	for idx, row := range chat.Rows {
		user := strings.TrimSpace(row.Cell(docs.ColChatUser))
		if user == "" || strings.TrimSpace(row.Cell(docs.ColChatAgent)) != "" {
			continue
		}

		reply := e.chatReply(ctx, docID, user)
		if err := e.backend.UpdateCell(ctx, docID, docs.TableChat, idx, docs.ColChatAgent, reply); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) chatReply(ctx context.Context, docID, message string) string {
	if strings.HasPrefix(strings.ToLower(message), executePrefix) {
		text := strings.TrimSpace(message[len(executePrefix):])
		canonical, ok := command.TryAutoDetect(text)
		if !ok {
			return "Sorry, I could not turn that into a command. Try e.g. \"!execute send 10 USDC to 0x...\""
		}
		return e.queueChatCommand(ctx, docID, canonical)
	}

	if canonical, ok := command.TryAutoDetect(message); ok {
		return fmt.Sprintf("That looks like `%s`. Prefix with %s to queue it.", canonical, executePrefix)
	}
	return "I can run treasury commands for you. Prefix a request with !execute, or type DW HELP in the Commands table."
}

// queueChatCommand appends a command row and record for a canonicalized
// chat instruction. Chat-born commands always go through approval unless
// demo mode is on.
func (e *Engine) queueChatCommand(ctx context.Context, docID, canonical string) string {
	parsed, err := command.Parse(canonical)
	if err != nil {
		return fmt.Sprintf("Detected `%s` but it does not parse: %v", canonical, err)
	}

	status := repo.StatusPendingApproval
	if e.cfg.Engine.DemoMode {
		status = repo.StatusApproved
	}
	cmd := &repo.Command{
		CmdID:      newID(),
		DocID:      docID,
		Raw:        canonical,
		ParsedJSON: marshalParsed(parsed),
		Status:     status,
	}
	if err := e.store.InsertCommand(cmd); err != nil {
		common.DocLogger("chat", docID).Errorf("failed to queue chat command: %v", err)
		return "Something went wrong queueing that command."
	}
	e.appendCommandRow(ctx, cmd, canonical)
	e.audit(docID, fmt.Sprintf("%s queued from chat: %s", cmd.CmdID, canonical))

	if status == repo.StatusApproved {
		return fmt.Sprintf("Queued `%s` as %s (auto-approved).", canonical, cmd.CmdID)
	}
	return fmt.Sprintf("Queued `%s` as %s - approve it at %s", canonical, cmd.CmdID, e.approvalURL(docID, cmd.CmdID))
}
