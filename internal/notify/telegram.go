package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lumenhealth/checkin/backend/internal/model/patient"
	"github.com/lumenhealth/checkin/backend/internal/model/pro"
	"github.com/lumenhealth/checkin/backend/internal/model/risk"
	"github.com/lumenhealth/checkin/backend/internal/report"
)

// TelegramNotifier posts alert summaries to a care-team chat through the
// Bot API: a short text message plus the PDF check-in summary.
type TelegramNotifier struct {
	token      string
	chatID     string
	httpClient *http.Client
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier builds a notifier for the given bot token and chat.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (t *TelegramNotifier) Notify(ctx context.Context, pat patient.Patient, assessment risk.Assessment, alerts []risk.Alert, responses []pro.Response) error {
	if err := t.sendMessage(ctx, formatAlertMessage(pat, assessment, alerts)); err != nil {
		return err
	}

	// The summary document is an extra; a font or render problem must not
	// fail the alert itself.
	summary, err := report.Summary(pat, assessment, responses)
	if err != nil {
		return nil
	}
	fileName := fmt.Sprintf("checkin_%s.pdf", assessment.SessionID)
	return t.sendDocument(ctx, summary, fileName)
}

type sendMessageReq struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	jsonBody, err := json.Marshal(sendMessageReq{ChatID: t.chatID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return t.do(req)
}

func (t *TelegramNotifier) sendDocument(ctx context.Context, fileData []byte, fileName string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendDocument", t.token)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("document", fileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(fileData); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return t.do(req)
}

func (t *TelegramNotifier) do(req *http.Request) error {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram api returned %s: %s", resp.Status, string(body))
	}
	return nil
}

// formatAlertMessage keeps the chat message short: who, how urgent, what to
// look at. No Markdown, patient answers quoted verbatim can break it.
func formatAlertMessage(pat patient.Patient, assessment risk.Assessment, alerts []risk.Alert) string {
	var b strings.Builder

	severity := risk.SeverityLow
	for _, a := range alerts {
		severity = a.Severity
	}
	fmt.Fprintf(&b, "[%s] Check-in alert for %s\n", strings.ToUpper(string(severity)), pat.FullName)
	fmt.Fprintf(&b, "Risk score: %.2f\n", assessment.Score)

	for _, sig := range assessment.Signals {
		if sig.Direction == risk.Worsening {
			fmt.Fprintf(&b, "- %s\n", sig.Name)
		}
	}
	if assessment.Recommendation != "" {
		b.WriteString(assessment.Recommendation)
	}
	return b.String()
}
