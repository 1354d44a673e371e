package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/meshychat/meshy/internal/domain"
	"github.com/meshychat/meshy/internal/id"
	"github.com/meshychat/meshy/internal/metrics"
	"github.com/meshychat/meshy/internal/protocol"
)

// translatedURLPrefix is where the HTTP layer serves files written to
// <uploads-root>/attachments/translated.
const translatedURLPrefix = "/api/v1/attachments/file/translated/"

// AudioJobParams describes one voice message to run through the
// transcribe+translate+synthesize pipeline.
type AudioJobParams struct {
	MessageID      string
	AttachmentID   string
	ConversationID string
	SenderID       string

	// AudioPath locates the source file, absolute or relative to the
	// process working directory.
	AudioPath  string
	FileName   string
	MimeType   string
	DurationMs int

	// UserLanguage is the sender's language, used as the source hint and
	// excluded from the target set.
	UserLanguage string
	// TargetLanguages overrides conversation-based target resolution.
	TargetLanguages []string

	MobileTranscription *protocol.MobileTranscriptionPayload
	GenerateVoiceClone  bool
	ModelType           string
}

// ProcessAudioAttachment gates an audio job on the sender's consent and ships
// it to a voice worker with the raw bytes inline. The returned task id tracks
// both completion phases.
func (o *Orchestrator) ProcessAudioAttachment(ctx context.Context, params *AudioJobParams) (string, error) {
	status, err := o.consent.GetConsentStatus(ctx, params.SenderID)
	if err != nil {
		// Unreachable consent service denies, never assumes.
		return "", fmt.Errorf("consent check for %s: %w", params.SenderID, err)
	}
	if !status.CanTranscribeAudio {
		slog.Info("orchestrator: audio job refused, no transcription consent",
			"user_id", params.SenderID, "attachment_id", params.AttachmentID)
		return "", domain.ErrConsentRequired
	}
	if !status.CanTranslateAudio {
		slog.Warn("orchestrator: translation consent missing, worker may refuse",
			"user_id", params.SenderID, "attachment_id", params.AttachmentID)
	}

	targets := o.audioTargets(ctx, params, status)

	cloneVoice := params.GenerateVoiceClone && status.CanUseVoiceCloning
	if params.GenerateVoiceClone && !status.CanUseVoiceCloning {
		slog.Warn("orchestrator: voice cloning requested without consent", "user_id", params.SenderID)
	}

	var profile *protocol.VoiceProfilePayload
	if vp, err := o.store.LoadVoiceProfile(ctx, params.SenderID); err == nil {
		profile = voiceProfilePayload(vp)
	} else if !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("orchestrator: load voice profile", "error", err, "user_id", params.SenderID)
	}

	audio, err := os.ReadFile(params.AudioPath)
	if err != nil {
		return "", fmt.Errorf("read audio %s: %w", params.AudioPath, err)
	}

	taskID, err := o.bus.RequestAudioJob(ctx, &protocol.AudioProcessRequest{
		MessageID:           params.MessageID,
		AttachmentID:        params.AttachmentID,
		ConversationID:      params.ConversationID,
		SenderID:            params.SenderID,
		FileName:            params.FileName,
		MimeType:            params.MimeType,
		DurationMs:          params.DurationMs,
		Audio:               audio,
		SourceLanguage:      params.UserLanguage,
		TargetLanguages:     targets,
		GenerateVoiceClone:  cloneVoice,
		ModelType:           params.ModelType,
		MobileTranscription: params.MobileTranscription,
		VoiceProfile:        profile,
	})
	if err != nil {
		o.stats.IncErrors()
		metrics.AudioJobsTotal.WithLabelValues("rejected").Inc()
		return "", fmt.Errorf("dispatch audio job: %w", err)
	}

	o.pending.Put(ctx, taskID, domain.PendingTask{
		MessageID:      params.MessageID,
		AttachmentID:   params.AttachmentID,
		ConversationID: params.ConversationID,
		UserID:         params.SenderID,
	})
	metrics.AudioJobsTotal.WithLabelValues("dispatched").Inc()
	slog.Info("orchestrator: audio job dispatched",
		"task_id", taskID, "attachment_id", params.AttachmentID, "targets", targets, "voice_clone", cloneVoice)
	return taskID, nil
}

// audioTargets resolves the synthesis languages for an audio job. Without
// consent for translated audio the set is empty and the job degrades to
// transcription only.
func (o *Orchestrator) audioTargets(ctx context.Context, params *AudioJobParams, status *domain.ConsentStatus) []string {
	if !status.CanGenerateTranslatedAudio {
		return nil
	}
	targets := params.TargetLanguages
	if len(targets) == 0 {
		resolved, err := o.resolveTargets(ctx, params.ConversationID, "")
		if err != nil {
			slog.Warn("orchestrator: resolve audio targets", "error", err, "conversation_id", params.ConversationID)
		}
		targets = resolved
	}
	targets = filterTargets(targets, params.UserLanguage)
	if len(targets) == 0 {
		targets = filterTargets(audioFallbackTargets, params.UserLanguage)
	}
	return targets
}

// AudioProcessOptions narrows a pipeline run started from a stored
// attachment. SenderID overrides the sender recorded on the parent message.
type AudioProcessOptions struct {
	SenderID            string
	TargetLanguages     []string
	GenerateVoiceClone  bool
	ModelType           string
	MobileTranscription *protocol.MobileTranscriptionPayload
}

// ProcessStoredAttachment resolves a persisted attachment and its parent
// message into job parameters and runs the full audio pipeline on them.
func (o *Orchestrator) ProcessStoredAttachment(ctx context.Context, attachmentID string, opts *AudioProcessOptions) (string, error) {
	if opts == nil {
		opts = &AudioProcessOptions{}
	}

	att, path, err := o.resolveAudioAttachment(ctx, attachmentID)
	if err != nil {
		return "", err
	}

	params := &AudioJobParams{
		MessageID:           att.MessageID,
		AttachmentID:        att.ID,
		ConversationID:      att.ConversationID,
		SenderID:            opts.SenderID,
		AudioPath:           path,
		FileName:            att.FileName,
		MimeType:            att.MimeType,
		DurationMs:          att.DurationMs,
		TargetLanguages:     opts.TargetLanguages,
		MobileTranscription: opts.MobileTranscription,
		GenerateVoiceClone:  opts.GenerateVoiceClone,
		ModelType:           opts.ModelType,
	}

	msg, err := o.store.FindMessage(ctx, att.MessageID)
	switch {
	case err == nil:
		params.UserLanguage = msg.OriginalLanguage
		if params.SenderID == "" && msg.SenderID != nil {
			params.SenderID = *msg.SenderID
		}
	case errors.Is(err, domain.ErrNotFound):
		// Orphaned attachment: consent still runs against opts.SenderID.
		slog.Warn("orchestrator: attachment has no parent message", "attachment_id", attachmentID)
	default:
		return "", fmt.Errorf("find message %s: %w", att.MessageID, err)
	}

	return o.ProcessAudioAttachment(ctx, params)
}

// OnTranscriptionReady handles phase one of the audio pipeline: the text is
// final while synthesis continues, so the task stays pending.
func (o *Orchestrator) OnTranscriptionReady(ctx context.Context, taskID string, ev *protocol.TranscriptionReady) {
	rec := transcriptionRecord(&ev.Transcription)
	if err := o.store.UpdateAttachmentTranscription(ctx, ev.AttachmentID, rec); err != nil {
		slog.Error("orchestrator: save transcription", "error", err, "attachment_id", ev.AttachmentID)
		o.stats.IncErrors()
		return
	}

	o.emitter.EmitTranscriptionReady(&protocol.TranscriptionReadyEvent{
		TaskID:           taskID,
		ConversationID:   o.conversationForTask(ctx, taskID, ev.MessageID),
		MessageID:        ev.MessageID,
		AttachmentID:     ev.AttachmentID,
		Phase:            "transcription",
		Transcription:    ev.Transcription,
		ProcessingTimeMs: ev.ProcessingTimeMs,
	})
	slog.Info("orchestrator: transcription ready",
		"task_id", taskID, "attachment_id", ev.AttachmentID, "language", ev.Transcription.Language)
}

// OnAudioTranslationReady is the single-target terminal delivery.
func (o *Orchestrator) OnAudioTranslationReady(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent) {
	o.handleAudioTranslation(ctx, taskID, ev, o.emitter.EmitAudioTranslationReady, true)
}

// OnAudioTranslationsProgressive is a multi-target per-language delivery with
// more to follow.
func (o *Orchestrator) OnAudioTranslationsProgressive(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent) {
	o.handleAudioTranslation(ctx, taskID, ev, o.emitter.EmitAudioTranslationsProgressive, false)
}

// OnAudioTranslationsCompleted carries the last language of a multi-target job.
func (o *Orchestrator) OnAudioTranslationsCompleted(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent) {
	o.handleAudioTranslation(ctx, taskID, ev, o.emitter.EmitAudioTranslationsCompleted, true)
}

func (o *Orchestrator) handleAudioTranslation(ctx context.Context, taskID string, ev *protocol.AudioTranslationEvent, emit func(*protocol.AudioTranslationReadyEvent), terminal bool) {
	if terminal {
		defer o.finishAudioTask(ctx, taskID)
	}

	language := ev.Language
	if language == "" {
		language = ev.TranslatedAudio.TargetLanguage
	}

	rec, err := o.saveTranslatedAudio(ctx, ev.AttachmentID, &ev.TranslatedAudio)
	if err != nil {
		slog.Error("orchestrator: save translated audio",
			"error", err, "task_id", taskID, "attachment_id", ev.AttachmentID, "language", language)
		o.stats.IncErrors()
		metrics.AudioJobsTotal.WithLabelValues("failed").Inc()
		return
	}

	emit(&protocol.AudioTranslationReadyEvent{
		TaskID:         taskID,
		ConversationID: o.conversationForTask(ctx, taskID, ev.MessageID),
		MessageID:      ev.MessageID,
		AttachmentID:   ev.AttachmentID,
		Language:       language,
		Saved:          []protocol.TranslatedAudioRecord{eventRecord(&ev.TranslatedAudio, rec.URL)},
	})
	if terminal {
		metrics.AudioJobsTotal.WithLabelValues("completed").Inc()
	}
	slog.Info("orchestrator: translated audio saved",
		"task_id", taskID, "attachment_id", ev.AttachmentID, "language", language, "terminal", terminal)
}

// OnAudioProcessCompleted handles the legacy one-shot bundle: transcription,
// every translation and an optional fresh voice profile in one event.
func (o *Orchestrator) OnAudioProcessCompleted(ctx context.Context, taskID string, ev *protocol.AudioProcessCompleted) {
	defer o.finishAudioTask(ctx, taskID)

	task, _ := o.pending.Get(ctx, taskID)

	if ev.Transcription != nil {
		if err := o.store.UpdateAttachmentTranscription(ctx, ev.AttachmentID, transcriptionRecord(ev.Transcription)); err != nil {
			slog.Error("orchestrator: save transcription", "error", err, "attachment_id", ev.AttachmentID)
			o.stats.IncErrors()
		}
	}

	saved := make([]protocol.TranslatedAudioRecord, 0, len(ev.Translations))
	for i := range ev.Translations {
		p := &ev.Translations[i]
		rec, err := o.saveTranslatedAudio(ctx, ev.AttachmentID, p)
		if err != nil {
			slog.Error("orchestrator: save translated audio",
				"error", err, "attachment_id", ev.AttachmentID, "language", p.TargetLanguage)
			o.stats.IncErrors()
			continue
		}
		saved = append(saved, eventRecord(p, rec.URL))
	}

	if ev.NewVoiceProfile != nil {
		if task.UserID == "" {
			slog.Warn("orchestrator: voice profile arrived without task context", "task_id", taskID)
		} else if err := o.upsertWorkerVoiceProfile(ctx, task.UserID, ev.NewVoiceProfile); err != nil {
			slog.Error("orchestrator: save voice profile", "error", err, "user_id", task.UserID)
			o.stats.IncErrors()
		}
	}

	conversationID := task.ConversationID
	if conversationID == "" {
		conversationID = o.conversationForTask(ctx, taskID, ev.MessageID)
	}
	o.emitter.EmitAudioTranslationReady(&protocol.AudioTranslationReadyEvent{
		TaskID:         taskID,
		ConversationID: conversationID,
		MessageID:      ev.MessageID,
		AttachmentID:   ev.AttachmentID,
		Saved:          saved,
	})
	metrics.AudioJobsTotal.WithLabelValues("completed").Inc()
	slog.Info("orchestrator: audio job completed",
		"task_id", taskID, "attachment_id", ev.AttachmentID, "languages", len(saved))
}

func (o *Orchestrator) OnAudioProcessError(ctx context.Context, taskID string, ev *protocol.AudioProcessError) {
	defer o.finishAudioTask(ctx, taskID)

	slog.Error("orchestrator: audio job failed",
		"task_id", taskID, "attachment_id", ev.AttachmentID, "worker_error", ev.Error, "code", ev.ErrorCode)
	o.stats.IncErrors()
	metrics.AudioJobsTotal.WithLabelValues("failed").Inc()

	o.emitter.EmitAudioTranslationError(&protocol.AudioTranslationErrorEvent{
		TaskID:         taskID,
		ConversationID: o.conversationForTask(ctx, taskID, ev.MessageID),
		MessageID:      ev.MessageID,
		AttachmentID:   ev.AttachmentID,
		Error:          ev.Error,
		ErrorCode:      ev.ErrorCode,
	})
}

// OnTranscriptionCompleted finishes a transcription-only job. The same ready
// event is reused with phase "completed": there is no further phase to wait
// for.
func (o *Orchestrator) OnTranscriptionCompleted(ctx context.Context, taskID string, ev *protocol.TranscriptionCompleted) {
	defer o.finishAudioTask(ctx, taskID)

	if err := o.store.UpdateAttachmentTranscription(ctx, ev.AttachmentID, transcriptionRecord(&ev.Transcription)); err != nil {
		slog.Error("orchestrator: save transcription", "error", err, "attachment_id", ev.AttachmentID)
		o.stats.IncErrors()
		return
	}

	o.emitter.EmitTranscriptionReady(&protocol.TranscriptionReadyEvent{
		TaskID:           taskID,
		ConversationID:   o.conversationForTask(ctx, taskID, ev.MessageID),
		MessageID:        ev.MessageID,
		AttachmentID:     ev.AttachmentID,
		Phase:            "completed",
		Transcription:    ev.Transcription,
		ProcessingTimeMs: ev.ProcessingTimeMs,
	})
	metrics.AudioJobsTotal.WithLabelValues("completed").Inc()
	slog.Info("orchestrator: transcription completed", "task_id", taskID, "attachment_id", ev.AttachmentID)
}

func (o *Orchestrator) OnTranscriptionError(ctx context.Context, taskID string, ev *protocol.TranscriptionOnlyError) {
	defer o.finishAudioTask(ctx, taskID)

	slog.Error("orchestrator: transcription failed",
		"task_id", taskID, "attachment_id", ev.AttachmentID, "worker_error", ev.Error)
	o.stats.IncErrors()
	metrics.AudioJobsTotal.WithLabelValues("failed").Inc()

	o.emitter.EmitTranscriptionError(&protocol.TranscriptionErrorEvent{
		TaskID:         taskID,
		ConversationID: o.conversationForTask(ctx, taskID, ev.MessageID),
		MessageID:      ev.MessageID,
		AttachmentID:   ev.AttachmentID,
		Error:          ev.Error,
	})
}

// OnVoiceTranslationCompleted re-associates a standalone voice job with its
// attachment when the pending map still knows it; otherwise the result goes
// straight to the requesting user.
func (o *Orchestrator) OnVoiceTranslationCompleted(ctx context.Context, ev *protocol.VoiceTranslationCompleted) {
	if task, ok := o.pending.Get(ctx, ev.JobID); ok && task.AttachmentID != "" {
		o.OnAudioProcessCompleted(ctx, ev.JobID, &protocol.AudioProcessCompleted{
			MessageID:     task.MessageID,
			AttachmentID:  task.AttachmentID,
			Transcription: ev.Result.Transcription,
			Translations:  ev.Result.Translations,
		})
		return
	}

	o.emitter.EmitVoiceJobCompleted(&protocol.VoiceJobCompletedEvent{
		JobID:  ev.JobID,
		UserID: ev.UserID,
		Result: ev.Result,
	})
	slog.Info("orchestrator: standalone voice job completed", "job_id", ev.JobID, "user_id", ev.UserID)
}

func (o *Orchestrator) OnVoiceTranslationFailed(ctx context.Context, ev *protocol.VoiceTranslationFailed) {
	o.stats.IncErrors()
	metrics.AudioJobsTotal.WithLabelValues("failed").Inc()

	if task, ok := o.pending.Get(ctx, ev.JobID); ok && task.AttachmentID != "" {
		o.finishAudioTask(ctx, ev.JobID)
		o.emitter.EmitAudioTranslationError(&protocol.AudioTranslationErrorEvent{
			TaskID:         ev.JobID,
			ConversationID: task.ConversationID,
			MessageID:      task.MessageID,
			AttachmentID:   task.AttachmentID,
			Error:          ev.Error,
		})
		return
	}

	slog.Error("orchestrator: standalone voice job failed",
		"job_id", ev.JobID, "user_id", ev.UserID, "worker_error", ev.Error)
	o.emitter.EmitVoiceJobFailed(&protocol.VoiceJobFailedEvent{
		JobID:  ev.JobID,
		UserID: ev.UserID,
		Error:  ev.Error,
	})
}

// AttachmentView is the read-path projection of an attachment with its
// transcription and translated audio entries flattened to a sorted list.
type AttachmentView struct {
	Attachment       *domain.Attachment             `json:"attachment"`
	Transcription    *domain.TranscriptionRecord    `json:"transcription,omitempty"`
	TranslatedAudios []domain.TranslatedAudioRecord `json:"translatedAudios"`
}

func (o *Orchestrator) GetAttachmentWithTranscription(ctx context.Context, attachmentID string) (*AttachmentView, error) {
	att, err := o.store.FindAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}

	languages := make([]string, 0, len(att.Translations))
	for lang := range att.Translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	audios := make([]domain.TranslatedAudioRecord, 0, len(languages))
	for _, lang := range languages {
		audios = append(audios, att.Translations[lang])
	}

	return &AttachmentView{
		Attachment:       att,
		Transcription:    att.Transcription,
		TranslatedAudios: audios,
	}, nil
}

// TranscribeAttachment re-runs transcription for an existing audio attachment.
func (o *Orchestrator) TranscribeAttachment(ctx context.Context, attachmentID, language string) (string, *domain.Attachment, error) {
	att, path, err := o.resolveAudioAttachment(ctx, attachmentID)
	if err != nil {
		return "", nil, err
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read audio %s: %w", path, err)
	}

	taskID, err := o.bus.RequestTranscription(ctx, &protocol.TranscriptionRequest{
		MessageID:      att.MessageID,
		AttachmentID:   att.ID,
		ConversationID: att.ConversationID,
		FileName:       att.FileName,
		MimeType:       att.MimeType,
		Audio:          audio,
		Language:       language,
	})
	if err != nil {
		o.stats.IncErrors()
		return "", nil, fmt.Errorf("dispatch transcription: %w", err)
	}

	o.pending.Put(ctx, taskID, domain.PendingTask{
		MessageID:      att.MessageID,
		AttachmentID:   att.ID,
		ConversationID: att.ConversationID,
	})
	metrics.AudioJobsTotal.WithLabelValues("dispatched").Inc()
	slog.Info("orchestrator: transcription dispatched", "task_id", taskID, "attachment_id", att.ID)
	return taskID, att, nil
}

// TranslateAttachment re-runs the full audio pipeline for an existing
// attachment. Consent was enforced when the audio first entered the system.
func (o *Orchestrator) TranslateAttachment(ctx context.Context, attachmentID string, targetLanguages []string, modelType string) (string, *domain.Attachment, error) {
	att, path, err := o.resolveAudioAttachment(ctx, attachmentID)
	if err != nil {
		return "", nil, err
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read audio %s: %w", path, err)
	}

	targets := targetLanguages
	if len(targets) == 0 {
		resolved, err := o.resolveTargets(ctx, att.ConversationID, "")
		if err != nil {
			slog.Warn("orchestrator: resolve audio targets", "error", err, "conversation_id", att.ConversationID)
		}
		targets = resolved
	}
	if len(targets) == 0 {
		targets = audioFallbackTargets
	}

	taskID, err := o.bus.RequestAudioJob(ctx, &protocol.AudioProcessRequest{
		MessageID:       att.MessageID,
		AttachmentID:    att.ID,
		ConversationID:  att.ConversationID,
		FileName:        att.FileName,
		MimeType:        att.MimeType,
		DurationMs:      att.DurationMs,
		Audio:           audio,
		TargetLanguages: targets,
		ModelType:       modelType,
	})
	if err != nil {
		o.stats.IncErrors()
		metrics.AudioJobsTotal.WithLabelValues("rejected").Inc()
		return "", nil, fmt.Errorf("dispatch audio job: %w", err)
	}

	o.pending.Put(ctx, taskID, domain.PendingTask{
		MessageID:      att.MessageID,
		AttachmentID:   att.ID,
		ConversationID: att.ConversationID,
	})
	metrics.AudioJobsTotal.WithLabelValues("dispatched").Inc()
	slog.Info("orchestrator: audio retranslation dispatched",
		"task_id", taskID, "attachment_id", att.ID, "targets", targets)
	return taskID, att, nil
}

// resolveAudioAttachment loads an attachment and maps its stored URL back to
// a file under the uploads root.
func (o *Orchestrator) resolveAudioAttachment(ctx context.Context, attachmentID string) (*domain.Attachment, string, error) {
	att, err := o.store.FindAttachment(ctx, attachmentID)
	if err != nil {
		return nil, "", fmt.Errorf("find attachment %s: %w", attachmentID, err)
	}
	if !strings.HasPrefix(att.MimeType, "audio/") {
		return nil, "", fmt.Errorf("attachment %s is %s: %w", attachmentID, att.MimeType, domain.ErrNotAudio)
	}
	path, err := o.audioPathFromURL(att.FileURL)
	if err != nil {
		return nil, "", err
	}
	return att, path, nil
}

// audioPathFromURL resolves a stored file URL to an absolute path. Escapes out
// of the uploads root are rejected.
func (o *Orchestrator) audioPathFromURL(fileURL string) (string, error) {
	decoded, err := url.PathUnescape(fileURL)
	if err != nil {
		return "", fmt.Errorf("decode file url %q: %w", fileURL, err)
	}
	rel := strings.TrimPrefix(decoded, "/uploads/")
	rel = strings.TrimPrefix(rel, "/")

	root := filepath.Clean(o.uploadsRoot)
	path := filepath.Join(root, filepath.FromSlash(rel))
	if path != root && !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", fmt.Errorf("file url %q escapes uploads root", fileURL)
	}
	return path, nil
}

// saveTranslatedAudio writes one synthesized audio to disk and merges its
// record into the attachment row. Binary payloads win over the base64
// fallback.
func (o *Orchestrator) saveTranslatedAudio(ctx context.Context, attachmentID string, p *protocol.TranslatedAudioPayload) (*domain.TranslatedAudioRecord, error) {
	audio := p.Audio
	if len(audio) == 0 && p.AudioB64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(p.AudioB64)
		if err != nil {
			return nil, fmt.Errorf("decode audio for %s: %w", p.TargetLanguage, err)
		}
		audio = decoded
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("no audio payload for %s", p.TargetLanguage)
	}

	dir := filepath.Join(o.uploadsRoot, "attachments", "translated")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create translated dir: %w", err)
	}

	ext := audioExtension(p.Format)
	filename := fmt.Sprintf("%s_%s.%s", attachmentID, p.TargetLanguage, ext)
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return nil, fmt.Errorf("write translated audio: %w", err)
	}

	rec := &domain.TranslatedAudioRecord{
		TargetLanguage: p.TargetLanguage,
		TranslatedText: p.TranslatedText,
		StoragePath:    path,
		URL:            translatedURLPrefix + filename,
		DurationMs:     p.DurationMs,
		Format:         ext,
		VoiceCloned:    p.VoiceCloned,
		VoiceQuality:   p.VoiceQuality,
		Segments:       toDomainSegments(p.Segments),
		TTSModel:       p.TTSModel,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.store.UpdateAttachmentTranslations(ctx, attachmentID, map[string]domain.TranslatedAudioRecord{
		p.TargetLanguage: *rec,
	}); err != nil {
		return nil, fmt.Errorf("update attachment translations: %w", err)
	}
	return rec, nil
}

func (o *Orchestrator) upsertWorkerVoiceProfile(ctx context.Context, userID string, p *protocol.VoiceProfilePayload) error {
	profileID := p.ProfileID
	if profileID == "" {
		profileID = id.NewVoiceProfile()
	}

	profile := &domain.VoiceProfile{
		UserID:       userID,
		ProfileID:    profileID,
		QualityScore: p.QualityScore,
		Version:      p.Version,
	}
	if p.Embedding != "" {
		embedding, err := base64.StdEncoding.DecodeString(p.Embedding)
		if err != nil {
			return fmt.Errorf("decode embedding: %w", err)
		}
		profile.Embedding = embedding
	}
	if p.ChatterboxConditionals != "" {
		conditionals, err := base64.StdEncoding.DecodeString(p.ChatterboxConditionals)
		if err != nil {
			return fmt.Errorf("decode conditionals: %w", err)
		}
		profile.ChatterboxConditionals = conditionals
	}
	if p.ReferenceAudioID != "" {
		profile.ReferenceAudioID = &p.ReferenceAudioID
	}
	if p.ReferenceAudioURL != "" {
		profile.ReferenceAudioURL = &p.ReferenceAudioURL
	}

	if err := o.store.UpsertVoiceProfile(ctx, profile); err != nil {
		return err
	}
	slog.Info("orchestrator: voice profile updated",
		"user_id", userID, "profile_id", profileID, "version", p.Version)
	return nil
}

// finishAudioTask drops the pending entry of a terminal audio event.
func (o *Orchestrator) finishAudioTask(ctx context.Context, taskID string) {
	o.pending.Delete(ctx, taskID)
}

func transcriptionRecord(p *protocol.TranscriptionPayload) *domain.TranscriptionRecord {
	return &domain.TranscriptionRecord{
		Text:                  p.Text,
		Language:              p.Language,
		Confidence:            p.Confidence,
		Source:                domain.TranscriptionSource(p.Source),
		Segments:              toDomainSegments(p.Segments),
		SpeakerCount:          p.SpeakerCount,
		PrimarySpeakerID:      p.PrimarySpeakerID,
		SenderVoiceIdentified: p.SenderVoiceIdentified,
		SenderSpeakerID:       p.SenderSpeakerID,
		SpeakerAnalysis:       p.SpeakerAnalysis,
		DurationMs:            p.DurationMs,
	}
}

func toDomainSegments(segments []protocol.TranscriptionSegmentPayload) []domain.TranscriptionSegment {
	if len(segments) == 0 {
		return nil
	}
	out := make([]domain.TranscriptionSegment, len(segments))
	for i, s := range segments {
		out[i] = domain.TranscriptionSegment{Start: s.Start, End: s.End, Text: s.Text, SpeakerID: s.SpeakerID}
	}
	return out
}

// eventRecord is the client-facing view of a saved audio: same payload minus
// the raw bytes, plus the serving URL.
func eventRecord(p *protocol.TranslatedAudioPayload, url string) protocol.TranslatedAudioRecord {
	return protocol.TranslatedAudioRecord{
		TargetLanguage: p.TargetLanguage,
		TranslatedText: p.TranslatedText,
		URL:            url,
		DurationMs:     p.DurationMs,
		Format:         audioExtension(p.Format),
		VoiceCloned:    p.VoiceCloned,
		VoiceQuality:   p.VoiceQuality,
		Segments:       p.Segments,
		TTSModel:       p.TTSModel,
	}
}

func voiceProfilePayload(vp *domain.VoiceProfile) *protocol.VoiceProfilePayload {
	p := &protocol.VoiceProfilePayload{
		ProfileID:    vp.ProfileID,
		Version:      vp.Version,
		QualityScore: vp.QualityScore,
	}
	if len(vp.Embedding) > 0 {
		p.Embedding = base64.StdEncoding.EncodeToString(vp.Embedding)
	}
	if len(vp.ChatterboxConditionals) > 0 {
		p.ChatterboxConditionals = base64.StdEncoding.EncodeToString(vp.ChatterboxConditionals)
	}
	if vp.ReferenceAudioID != nil {
		p.ReferenceAudioID = *vp.ReferenceAudioID
	}
	if vp.ReferenceAudioURL != nil {
		p.ReferenceAudioURL = *vp.ReferenceAudioURL
	}
	return p
}

func audioExtension(format string) string {
	ext := strings.TrimPrefix(strings.ToLower(format), ".")
	if ext == "" {
		return "mp3"
	}
	return ext
}
