package handlers

import (
	"net/http"

	"voicecab/services/dialogue"
	"voicecab/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

const gatherAction = "/api/twilio/gather"

// VoiceHandler bridges the telephony webhooks and the dialogue engine. The
// call SID doubles as the conversation session id.
type VoiceHandler struct {
	Engine *dialogue.Engine
}

// IncomingCallHandler answers a fresh call: it creates the conversation and
// speaks the opening question.
func (h *VoiceHandler) IncomingCallHandler(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	from := c.PostForm("From")
	if callSid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CallSid"})
		return
	}

	result, err := h.Engine.StartSession(callSid, from)
	if err != nil {
		utils.GetLogger().Error("failed to start call session",
			zap.String("callSid", callSid), zap.Error(err))
		respondHangup(c, "Sorry, we cannot take your booking right now. Please call again later.")
		return
	}
	respondGather(c, result.Prompt)
}

// GatherHandler receives one transcribed utterance and speaks the engine's
// next prompt. An empty speech result still goes through the engine, which
// answers with a clarifying re-prompt.
func (h *VoiceHandler) GatherHandler(c *gin.Context) {
	callSid := c.PostForm("CallSid")
	utterance := c.PostForm("SpeechResult")
	if callSid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CallSid"})
		return
	}

	result, err := h.Engine.Advance(c.Request.Context(), callSid, utterance)
	if err != nil {
		utils.GetLogger().Error("failed to advance call session",
			zap.String("callSid", callSid), zap.Error(err))
		respondHangup(c, "Sorry, something went wrong with your booking. Please call again.")
		return
	}

	if result.Terminal != dialogue.TerminalNone {
		respondHangup(c, result.Prompt)
		return
	}
	respondGather(c, result.Prompt)
}

// simulateTurn is the JSON surface for exercising the dialogue without a
// telephony provider.
type simulateTurn struct {
	SessionID string `json:"sessionId"`
	Prompt    string `json:"prompt"`
	Terminal  string `json:"terminal,omitempty"`
}

// simulatedScript is the canned conversation the bare simulate-call endpoint
// plays through.
var simulatedScript = []string{
	"2 people",
	"Tower of London",
	"yes",
	"Buckingham Palace",
	"yes",
	"tomorrow at 10 PM",
	"yes",
}

// SimulateCallHandler drives the conversation over plain HTTP for local
// verification. With "session" and "say" query parameters it applies a single
// turn; with "start" it opens a new conversation and returns its id; bare, it
// plays the canned script end to end and returns the transcript.
func (h *VoiceHandler) SimulateCallHandler(c *gin.Context) {
	if sessionID := c.Query("session"); sessionID != "" {
		result, err := h.Engine.Advance(c.Request.Context(), sessionID, c.Query("say"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to advance session", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, simulateTurn{
			SessionID: sessionID,
			Prompt:    result.Prompt,
			Terminal:  string(result.Terminal),
		})
		return
	}

	from := c.DefaultQuery("from", "+15550100000")
	sessionID := uuid.New().String()
	start, err := h.Engine.StartSession(sessionID, from)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session", "details": err.Error()})
		return
	}

	if c.Query("start") != "" {
		c.JSON(http.StatusOK, simulateTurn{SessionID: sessionID, Prompt: start.Prompt})
		return
	}

	transcript := []simulateTurn{{SessionID: sessionID, Prompt: start.Prompt}}
	for _, say := range simulatedScript {
		result, err := h.Engine.Advance(c.Request.Context(), sessionID, say)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to advance session", "details": err.Error()})
			return
		}
		transcript = append(transcript, simulateTurn{
			SessionID: sessionID,
			Prompt:    result.Prompt,
			Terminal:  string(result.Terminal),
		})
		if result.Terminal != dialogue.TerminalNone {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "transcript": transcript})
}

// respondGather speaks the prompt and listens for the caller's answer. A
// silent caller falls through the redirect and gets re-prompted.
func respondGather(c *gin.Context, prompt string) {
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceGather{
			Input:         "speech",
			Action:        gatherAction,
			Method:        "POST",
			SpeechTimeout: "auto",
			InnerElements: []twiml.Element{
				&twiml.VoiceSay{Message: prompt},
			},
		},
		&twiml.VoiceRedirect{Url: gatherAction, Method: "POST"},
	})
	writeTwiML(c, doc, err)
}

func respondHangup(c *gin.Context, message string) {
	doc, err := twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: message},
		&twiml.VoiceHangup{},
	})
	writeTwiML(c, doc, err)
}

func writeTwiML(c *gin.Context, doc string, err error) {
	if err != nil {
		utils.GetLogger().Error("failed to render voice response", zap.Error(err))
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, doc)
}
