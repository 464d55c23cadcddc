package export

import (
	"context"
	"os"
	"time"

	"framecast/internal/deps"
	"framecast/internal/events"
	"framecast/internal/fileutil"
	"framecast/internal/journal"
	"framecast/internal/logging"
	"framecast/internal/mp4meta"
	"framecast/internal/services"
	"framecast/internal/session"
)

// progressLogInterval spaces out frame-counter log lines so a long encode
// does not flood the log.
const progressLogInterval = 120

// Finalize encodes the persisted frames into the chosen destination. It owns
// the whole tail of the lifecycle: destination selection, encoder discovery,
// the encode itself, the mode-specific delivery step, and workspace
// teardown. Exactly one terminal event is published and the workspace is
// removed on every path out, success or not.
func (e *Exporter) Finalize(ctx context.Context, format Format, choose PathChooser) (Result, error) {
	sess, runCtx, err := e.enterFinalize(ctx)
	if err != nil {
		return Result{}, err
	}

	var result Result
	defer func() {
		e.leaveFinalize(result, err)
	}()

	result, err = e.finalize(runCtx, sess, format, choose)
	return result, err
}

// enterFinalize transitions Idle -> Validating and claims the session for
// the run. The cancel func is stashed so Cancel can kill an in-flight
// encoder.
func (e *Exporter) enterFinalize(ctx context.Context) (*session.Session, context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess == nil || !e.sess.Active() {
		return nil, nil, services.Wrap(services.ErrNotInitialized, "finalize", "", "no active export session", nil)
	}
	if e.cancel != nil {
		return nil, nil, services.Wrap(services.ErrEncode, "finalize", "", "finalize already in progress", nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.state = StateValidating
	return e.sess, runCtx, nil
}

// leaveFinalize is the single terminal transition: tear down the workspace,
// settle the state, and publish exactly one terminal event.
func (e *Exporter) leaveFinalize(result Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.sess != nil {
		e.sess.Cleanup()
		e.sess = nil
	}

	switch {
	case err == nil:
		e.state = StateDone
		if e.bus != nil {
			e.bus.Publish(events.ExportCompleted{OutputPath: result.OutputPath, SizeBytes: result.SizeBytes})
		}
	case services.IsCanceled(err):
		e.state = StateCancelled
		if e.bus != nil {
			e.bus.Publish(events.ExportCanceled{})
		}
	default:
		e.state = StateFailed
		if e.bus != nil {
			e.bus.Publish(events.ExportFailed{Message: err.Error()})
		}
	}
}

func (e *Exporter) finalize(ctx context.Context, sess *session.Session, format Format, choose PathChooser) (Result, error) {
	if err := interrupted(ctx, "validate"); err != nil {
		return Result{}, err
	}

	total := int64(sess.FrameCount())
	if total == 0 {
		return Result{}, services.Wrap(services.ErrNoFrames, "validate", "", "no frames have been saved", nil)
	}

	destination, ok, err := choose(format)
	if err != nil {
		return Result{}, services.Wrap(services.ErrEncode, "validate", "choose-path", "selecting destination", err)
	}
	if !ok {
		return Result{}, services.Wrap(services.ErrCanceled, "validate", "choose-path", "destination selection declined", nil)
	}
	if err := interrupted(ctx, "validate"); err != nil {
		return Result{}, err
	}

	binary, err := deps.Locate(ctx, deps.FFmpegCandidates(e.cfg.Encoder.FFmpegPath), time.Duration(e.cfg.Encoder.ProbeTimeout)*time.Second)
	if err != nil {
		return Result{}, err
	}

	e.setState(StateEncoding)
	e.logger.Info("encode started",
		logging.String("format", string(format)),
		logging.String("destination", destination),
		logging.Int64("frames", total),
		logging.Int("fps", sess.Settings().FPS),
		logging.Bool("audio", sess.HasAudio()),
	)

	plan := encodePlan{
		inputPattern: sess.InputPattern(),
		fps:          sess.Settings().FPS,
		format:       format,
		crf:          e.cfg.Export.H264CRF,
		preset:       e.cfg.Export.H264Preset,
		audioBitrate: e.cfg.Export.AudioBitrate,
		output:       sess.TempOutputPath(format.Ext()),
	}
	if sess.HasAudio() {
		plan.audioPath = sess.AudioPath()
	}

	sampler := logging.NewFrameSampler(progressLogInterval)
	var lastPublished int64
	onFrame := func(frame int64) {
		if frame > total {
			frame = total
		}
		if frame <= lastPublished {
			return
		}
		lastPublished = frame
		if e.bus != nil {
			e.bus.Publish(events.ExportProgress{Frame: frame, Total: total})
		}
		if sampler.ShouldLog(frame, total) {
			e.logger.Info("encode progress", logging.Int64("frame", frame), logging.Int64("total", total))
		}
	}

	if _, err := runEncoder(ctx, binary, plan.args(), e.parser, onFrame, e.logger); err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(plan.output); err != nil {
		return Result{}, services.Wrap(services.ErrEncode, "encode", "", "encoder produced no output file", err)
	}

	switch format {
	case FormatProRes:
		if err := fileutil.MoveFile(plan.output, destination); err != nil {
			return Result{}, services.Wrap(services.ErrEncode, "deliver", "move", "moving output into place", err)
		}
	default:
		if err := e.remux(ctx, binary, plan.output, destination); err != nil {
			return Result{}, err
		}
	}

	info, err := os.Stat(destination)
	if err != nil {
		return Result{}, services.Wrap(services.ErrEncode, "deliver", "stat", "inspecting output", err)
	}

	result := Result{OutputPath: destination, SizeBytes: info.Size(), Frames: total}
	e.recordJournal(ctx, sess, format, result)
	e.logger.Info("export completed",
		logging.String("output", destination),
		logging.Int64("size_bytes", result.SizeBytes),
		logging.Int64("frames", total),
	)
	return result, nil
}

// remux performs the second pass of the compatibility mode: a stream copy
// into the destination with the index moved to the front. The temporary
// encode output is removed whether or not the remux succeeds.
func (e *Exporter) remux(ctx context.Context, binary, tempOutput, destination string) error {
	e.setState(StateRemuxing)
	defer func() {
		if err := os.Remove(tempOutput); err != nil && !os.IsNotExist(err) {
			e.logger.Warn("failed to remove temporary output",
				logging.String("path", tempOutput),
				logging.Error(err),
			)
		}
	}()

	if _, err := runEncoder(ctx, binary, remuxArgs(tempOutput, destination), e.parser, nil, e.logger); err != nil {
		if services.IsCanceled(err) {
			return err
		}
		return services.Wrap(services.ErrRemux, "remux", "run", "relocating stream index", err)
	}
	if _, err := os.Stat(destination); err != nil {
		return services.Wrap(services.ErrRemux, "remux", "", "remux produced no destination file", err)
	}

	if fast, err := mp4meta.FastStart(destination); err != nil {
		e.logger.Warn("could not verify stream index placement", logging.Error(err))
	} else if !fast {
		e.logger.Warn("output index is not at the front of the file",
			logging.String("path", destination),
		)
	}
	return nil
}

func (e *Exporter) recordJournal(ctx context.Context, sess *session.Session, format Format, result Result) {
	if e.journal == nil {
		return
	}
	fps := sess.Settings().FPS
	entry := journal.Entry{
		OutputPath:      result.OutputPath,
		Format:          string(format),
		Frames:          result.Frames,
		FPS:             fps,
		SizeBytes:       result.SizeBytes,
		DurationSeconds: float64(result.Frames) / float64(fps),
	}
	if _, err := e.journal.Record(ctx, entry); err != nil {
		e.logger.Warn("failed to record export history", logging.Error(err))
	}
}

// interrupted classifies a dead context as a cancellation for the given
// stage. Without this, a cancel racing in before the encoder starts would
// surface through whichever stage step failed first.
func interrupted(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCanceled, stage, "", "export interrupted", err)
	}
	return nil
}

func (e *Exporter) setState(state State) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}
