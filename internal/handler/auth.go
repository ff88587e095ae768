package handler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/dwarrowdelf/server/internal/net"
	"github.com/dwarrowdelf/server/internal/net/packet"
	"github.com/dwarrowdelf/server/internal/world"
)

const dbTimeout = 5 * time.Second

// HandleLogOn processes C_OPCODE_LOGIN.
// Format: [opcode][account\0][password\0]
func HandleLogOn(sess *net.Session, r *packet.Reader, deps *Deps) error {
	accountName := cases.Fold().String(r.ReadS())
	password := r.ReadS()

	if accountName == "" || password == "" {
		sendError(sess, "empty account name or password")
		return fmt.Errorf("empty credentials")
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	account, err := deps.AccountRepo.Load(ctx, accountName)
	if err != nil {
		deps.Log.Error("account load failed", zap.Error(err))
		sendError(sess, "login failed")
		return nil
	}

	if account == nil {
		if !deps.Config.Game.AutoCreateAccounts {
			sendError(sess, "no such account")
			return nil
		}
		account, err = deps.AccountRepo.Create(ctx, accountName, password, sess.IP)
		if err != nil {
			deps.Log.Error("account create failed", zap.Error(err))
			sendError(sess, "login failed")
			return nil
		}
		deps.Log.Info("account auto-created", zap.String("account", accountName))
	} else if !deps.AccountRepo.ValidatePassword(account.PasswordHash, password) {
		sendError(sess, "wrong password")
		return nil
	}

	if account.Banned {
		deps.Log.Info("banned account login attempt", zap.String("account", accountName))
		sendError(sess, "account banned")
		return nil
	}

	admin := int(account.AccessLevel) >= deps.Config.Game.AdminAccessLevel

	persistedID := world.PlayerIDInvalid
	if row, err := deps.PlayerRepo.LoadByAccount(ctx, accountName); err != nil {
		deps.Log.Error("player row load failed", zap.Error(err))
	} else if row != nil {
		persistedID = world.PlayerID(row.ID)
	}

	user, err := deps.Engine.LogOn(sess, accountName, admin, persistedID)
	if err != nil {
		sendError(sess, err.Error())
		return nil
	}

	if err := deps.AccountRepo.UpdateLastActive(ctx, accountName, sess.IP); err != nil {
		deps.Log.Error("update last active failed", zap.Error(err))
	}
	if err := deps.PlayerRepo.Insert(ctx, int32(user.Player().ID()),
		accountName, admin); err != nil {
		deps.Log.Error("player row insert failed", zap.Error(err))
	}
	return nil
}

func sendError(sess *net.Session, msg string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ERROR)
	w.WriteS(msg)
	sess.Send(w.Bytes())
}
