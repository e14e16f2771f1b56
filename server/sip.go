package server

import (
	"context"
	"log/slog"

	"github.com/emiago/diago"
	"github.com/emiago/sipgo"
	"github.com/open-switchboard/switchboard/config"
	"github.com/open-switchboard/switchboard/routing"
	"github.com/open-switchboard/switchboard/types"
	"github.com/open-switchboard/switchboard/utils"
)

// StartSIPServer accepts SIP calls and feeds them into the routing engine
// as call events, so SIP callers share the operator pool and wait queue
// with line-protocol clients.
func StartSIPServer(ctx context.Context, cfg *config.Config, engine *routing.Engine, logger *slog.Logger) {
	logger.Info("starting SIP ingress", "protocol", cfg.SIPProtocol, "addr", cfg.SIPListenAddress, "port", cfg.SIPPort)

	transport := diago.Transport{
		Transport: cfg.SIPProtocol,
		BindHost:  cfg.SIPListenAddress,
		BindPort:  cfg.SIPPort,
	}

	ua, err := sipgo.NewUA()
	if err != nil {
		logger.Error("creating SIP user agent", "error", err)
		return
	}

	dg := diago.NewDiago(ua, diago.WithTransport(transport))

	dg.Serve(ctx, func(inDialog *diago.DialogServerSession) {
		HandleIncomingCall(ctx, inDialog, engine, cfg, logger)
	})
}

// HandleIncomingCall drives one SIP dialog through the routing engine's
// call lifecycle: INVITE becomes a call event, the dialog is answered when
// an operator answers, and hung up when the call leaves the registry.
func HandleIncomingCall(parentCtx context.Context, inDialog *diago.DialogServerSession, engine *routing.Engine, cfg *config.Config, logger *slog.Logger) {
	callCtx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	callerID := utils.ExtractCallerPhone(inDialog.InviteRequest.Headers())
	callID := utils.GenerateCallID()

	// Watch before submitting the call event so no transition is missed.
	events := engine.WatchCall(callID)
	defer engine.UnwatchCall(callID)

	inDialog.Trying()

	if _, err := engine.HandleCommand("", types.Command{Command: types.CmdCall, ID: callID}); err != nil {
		logger.Error("routing SIP call", "call", callID, "error", err)
		return
	}

	if cfg.LogPhoneNumbers {
		logger.Info("new SIP call", "call", callID, "caller", callerID)
	} else {
		logger.Info("new SIP call", "call", callID)
	}

	defer logger.Info("SIP call ended", "call", callID)

	for {
		select {
		case state, ok := <-events:
			if !ok {
				// The call left the active registry: hung up, missed, or
				// timed out. Tear the dialog down.
				inDialog.Hangup(callCtx)
				return
			}
			if state == types.CallAnswered {
				inDialog.Answer()
			}
		case <-callCtx.Done():
			// Server shutdown; the hangup may race the call's own removal,
			// in which case the engine reports an invalid id and that is fine.
			engine.HandleCommand("", types.Command{Command: types.CmdHangup, ID: callID})
			return
		}
	}
}
