package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/okian/voiceprint/internal/adapters/credentials"
	"github.com/okian/voiceprint/internal/domain/model"
	"github.com/okian/voiceprint/pkg/logger"
)

type command func(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error

var commands = map[string]command{
	"list":    cmdList,
	"history": cmdHistory,
	"create":  cmdCreate,
	"update":  cmdUpdate,
	"delete":  cmdDelete,
	"upload":  cmdUpload,
	"login":   cmdLogin,
	"logout":  cmdLogout,
}

type okResult struct {
	OK bool `json:"ok"`
}

func parse(fs *flag.FlagSet, args []string, required map[string]*string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	var missing []string
	fs.VisitAll(func(f *flag.Flag) {
		if v, ok := required[f.Name]; ok && strings.TrimSpace(*v) == "" {
			missing = append(missing, "-"+f.Name)
		}
	})
	if len(missing) > 0 {
		fmt.Fprintf(fs.Output(), "%s: missing required flag(s) %s\n", fs.Name(), strings.Join(missing, ", "))
		fs.Usage()
		return errUsage
	}
	return nil
}

func cmdList(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	agent := fs.String("agent", "", "agent id")
	if err := parse(fs, args, map[string]*string{"agent": agent}); err != nil {
		return err
	}
	list, err := a.api.ListVoicePrints(ctx, *agent)
	if err != nil {
		return err
	}
	return a.print(list)
}

func cmdHistory(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	agent := fs.String("agent", "", "agent id")
	if err := parse(fs, args, map[string]*string{"agent": agent}); err != nil {
		return err
	}
	history, err := a.api.ListChatHistory(ctx, *agent)
	if err != nil {
		return err
	}
	return a.print(history)
}

func cmdCreate(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var data model.CreateSpeakerData
	fs.StringVar(&data.AgentID, "agent", "", "agent id")
	fs.StringVar(&data.AudioID, "audio", "", "audio id returned by upload")
	fs.StringVar(&data.SourceName, "name", "", "speaker name")
	fs.StringVar(&data.Introduce, "intro", "", "speaker description")
	required := map[string]*string{"agent": &data.AgentID, "audio": &data.AudioID, "name": &data.SourceName}
	if err := parse(fs, args, required); err != nil {
		return err
	}
	if err := a.api.CreateVoicePrint(ctx, data); err != nil {
		return err
	}
	return a.print(okResult{OK: true})
}

func cmdUpdate(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	var vp model.VoicePrint
	fs.StringVar(&vp.ID, "id", "", "voiceprint id")
	fs.StringVar(&vp.AgentID, "agent", "", "agent id")
	fs.StringVar(&vp.AudioID, "audio", "", "new audio id")
	fs.StringVar(&vp.SourceName, "name", "", "new speaker name")
	fs.StringVar(&vp.Introduce, "intro", "", "new speaker description")
	if err := parse(fs, args, map[string]*string{"id": &vp.ID}); err != nil {
		return err
	}
	if err := a.api.UpdateVoicePrint(ctx, vp); err != nil {
		return err
	}
	return a.print(okResult{OK: true})
}

func cmdDelete(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "voiceprint id")
	if err := parse(fs, args, map[string]*string{"id": id}); err != nil {
		return err
	}
	if err := a.api.DeleteVoicePrint(ctx, *id); err != nil {
		return err
	}
	return a.print(okResult{OK: true})
}

func cmdUpload(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	agent := fs.String("agent", "", "agent id")
	file := fs.String("file", "", "path to an audio file")
	if err := parse(fs, args, map[string]*string{"agent": agent, "file": file}); err != nil {
		return err
	}
	audioID, err := a.api.UploadVoicePrintAudio(ctx, *agent, *file)
	if err != nil {
		return err
	}
	return a.print(struct {
		AudioID string `json:"audioId"`
	}{AudioID: audioID})
}

func cmdLogin(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	token := fs.String("token", "", "API token")
	if err := parse(fs, args, map[string]*string{"token": token}); err != nil {
		return err
	}
	if err := a.tokens.Set(ctx, credentials.TokenKey, strings.TrimSpace(*token)); err != nil {
		return err
	}
	a.log.Info(ctx, "token stored", logger.String("path", a.tokens.Path()))
	return a.print(okResult{OK: true})
}

func cmdLogout(ctx context.Context, a *app, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.tokens.Delete(ctx, credentials.TokenKey); err != nil {
		return err
	}
	return a.print(okResult{OK: true})
}
