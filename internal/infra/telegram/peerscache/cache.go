// Package peerscache — кэш сущностей Telegram для одного аккаунта поверх
// gotd peers.Manager и bbolt. Отвечает за:
//   - персистентное хранение access_hash известных пиров между рестартами;
//   - резолв целей по username и «голому» числовому идентификатору;
//   - догрузку списка диалогов, когда идентификатор ещё не известен.
//
// Без сохранённого access_hash Telegram не принимает обращение к каналу или
// пользователю по голому id, поэтому всё, что аккаунт увидел в диалогах,
// запоминается на диске.
package peerscache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"go.etcd.io/bbolt"

	"telegram-accounts/internal/domain/errs"
	"telegram-accounts/internal/infra/logger"
)

const (
	peersBucketName             = "peers"
	dbOpenTimeout               = time.Second
	dbFileMode      os.FileMode = 0o600
)

var peersBucketBytes = []byte(peersBucketName)

// peerRef — минимальная запись о пире, достаточная для восстановления
// peers.Manager после рестарта.
type peerRef struct {
	Kind       string `json:"kind"` // user | chat | channel
	ID         int64  `json:"id"`
	AccessHash int64  `json:"access_hash,omitempty"`
	Username   string `json:"username,omitempty"`
	Title      string `json:"title,omitempty"`
	Megagroup  bool   `json:"megagroup,omitempty"`
	Broadcast  bool   `json:"broadcast,omitempty"`
}

// Cache инкапсулирует менеджер пиров одного аккаунта и его bbolt-хранилище.
// Потокобезопасен: peers.Manager синхронизирован внутри gotd, запись refs
// на диск защищена мьютексом.
type Cache struct {
	api *tg.Client
	mgr *peers.Manager
	db  *bbolt.DB

	mu sync.Mutex // сериализует persist-запись
}

// New открывает bbolt-файл кэша и собирает peers.Manager поверх api.
// Сетевых запросов не выполняет.
func New(api *tg.Client, path string) (*Cache, error) {
	if api == nil {
		return nil, errors.New("peerscache: api client is nil")
	}

	db, err := bbolt.Open(path, dbFileMode, &bbolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("peerscache: open db: %w", err)
	}

	return &Cache{
		api: api,
		mgr: (peers.Options{}).Build(api),
		db:  db,
	}, nil
}

// Close закрывает файл базы данных.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// WarmFromDisk прогружает сохранённые refs в оперативный peers.Manager.
// Битые записи пропускаются, а не валят старт аккаунта.
func (c *Cache) WarmFromDisk(ctx context.Context) error {
	var refs []peerRef
	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(peersBucketBytes)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var ref peerRef
			if jsonErr := json.Unmarshal(v, &ref); jsonErr != nil {
				logger.Debugf("peerscache: skip corrupt ref: %v", jsonErr)
				return nil
			}
			refs = append(refs, ref)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("peerscache: load refs: %w", err)
	}
	if len(refs) == 0 {
		return nil
	}

	users := make([]tg.UserClass, 0, len(refs))
	chats := make([]tg.ChatClass, 0, len(refs))
	for _, ref := range refs {
		switch ref.Kind {
		case "user":
			user := &tg.User{ID: ref.ID, AccessHash: ref.AccessHash}
			if ref.Username != "" {
				user.SetUsername(ref.Username)
			}
			users = append(users, user)
		case "chat":
			chats = append(chats, &tg.Chat{ID: ref.ID, Title: ref.Title})
		case "channel":
			channel := &tg.Channel{
				ID:         ref.ID,
				AccessHash: ref.AccessHash,
				Title:      ref.Title,
				Megagroup:  ref.Megagroup,
				Broadcast:  ref.Broadcast,
			}
			if ref.Username != "" {
				channel.SetUsername(ref.Username)
			}
			chats = append(chats, channel)
		}
	}

	if applyErr := c.mgr.Apply(ctx, users, chats); applyErr != nil {
		return fmt.Errorf("peerscache: apply stored refs: %w", applyErr)
	}
	logger.Debugf("peerscache: warmed %d peers from disk", len(refs))
	return nil
}

// Remember применяет сущности к менеджеру пиров и сохраняет их refs на диск.
// Ошибка записи на диск не фатальна: кэш остаётся тёплым в памяти.
func (c *Cache) Remember(ctx context.Context, users []tg.UserClass, chats []tg.ChatClass) error {
	if len(users) == 0 && len(chats) == 0 {
		return nil
	}
	if err := c.mgr.Apply(ctx, users, chats); err != nil {
		return errors.Wrap(err, "apply entities")
	}
	if err := c.persist(users, chats); err != nil {
		logger.Warnf("peerscache: persist refs: %v", err)
	}
	return nil
}

// ResolveUsername резолвит публичный username в InputPeer через
// contacts.resolveUsername и запоминает все сущности из ответа.
func (c *Cache) ResolveUsername(ctx context.Context, username string) (tg.InputPeerClass, error) {
	resolved, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	if err != nil {
		return nil, errs.FromTelegram(err)
	}
	if err = c.Remember(ctx, resolved.Users, resolved.Chats); err != nil {
		return nil, err
	}
	peer := inputPeerFromEntities(resolved.Peer, resolved.Users, resolved.Chats)
	if peer == nil {
		return nil, errs.Errorf(errs.KindPeerNotFound, "username %s resolved to nothing", username)
	}
	return peer, nil
}

// ResolveID подбирает InputPeer по каноническому числовому идентификатору.
// Отрицательные значения трактуются как id обычной группы (-id), положительные
// проверяются как канал → группа → пользователь. Если сущность ещё не
// встречалась, один раз догружается полный список диалогов.
func (c *Cache) ResolveID(ctx context.Context, id int64) (tg.InputPeerClass, error) {
	peer, ok, err := c.lookupID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		return peer, nil
	}

	// Неизвестный id: освежаем диалоги и пробуем ещё раз.
	if _, err = c.FetchDialogs(ctx, 0); err != nil {
		return nil, err
	}
	peer, ok, err = c.lookupID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Errorf(errs.KindPeerNotFound, "no dialog with id %d", id)
	}
	return peer, nil
}

// lookupID проверяет известные менеджеру пиров сущности без сетевых запросов
// к диалогам.
func (c *Cache) lookupID(ctx context.Context, id int64) (tg.InputPeerClass, bool, error) {
	if id < 0 {
		chat, err := c.mgr.ResolveChatID(ctx, -id)
		if err != nil {
			if isPeerNotFound(err) {
				return nil, false, nil
			}
			return nil, false, errs.FromTelegram(err)
		}
		return chat.InputPeer(), true, nil
	}

	if channel, err := c.mgr.ResolveChannelID(ctx, id); err == nil {
		return channel.InputPeer(), true, nil
	} else if !isPeerNotFound(err) {
		return nil, false, errs.FromTelegram(err)
	}

	if chat, err := c.mgr.ResolveChatID(ctx, id); err == nil {
		return chat.InputPeer(), true, nil
	} else if !isPeerNotFound(err) {
		return nil, false, errs.FromTelegram(err)
	}

	if user, err := c.mgr.ResolveUserID(ctx, id); err == nil {
		return user.InputPeer(), true, nil
	} else if !isPeerNotFound(err) {
		return nil, false, errs.FromTelegram(err)
	}

	return nil, false, nil
}

// persist сохраняет refs сущностей в bbolt. Ключ — "kind:id".
func (c *Cache) persist(users []tg.UserClass, chats []tg.ChatClass) error {
	refs := make([]peerRef, 0, len(users)+len(chats))
	for _, entity := range users {
		if user, ok := entity.(*tg.User); ok {
			refs = append(refs, peerRef{
				Kind:       "user",
				ID:         user.ID,
				AccessHash: user.AccessHash,
				Username:   user.Username,
			})
		}
	}
	for _, entity := range chats {
		switch item := entity.(type) {
		case *tg.Chat:
			refs = append(refs, peerRef{Kind: "chat", ID: item.ID, Title: item.Title})
		case *tg.Channel:
			refs = append(refs, peerRef{
				Kind:       "channel",
				ID:         item.ID,
				AccessHash: item.AccessHash,
				Username:   item.Username,
				Title:      item.Title,
				Megagroup:  item.Megagroup,
				Broadcast:  item.Broadcast,
			})
		}
	}
	if len(refs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(peersBucketBytes)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			value, marshalErr := json.Marshal(ref)
			if marshalErr != nil {
				return marshalErr
			}
			key := ref.Kind + ":" + strconv.FormatInt(ref.ID, 10)
			if putErr := bucket.Put([]byte(key), value); putErr != nil {
				return putErr
			}
		}
		return nil
	})
}

// isPeerNotFound распознаёт «сущность не найдена» из peers.Manager.
func isPeerNotFound(err error) bool {
	var nf *peers.PeerNotFoundError
	return errors.As(err, &nf)
}

// inputPeerFromEntities строит InputPeer по peer, подбирая access_hash из
// сопутствующих сущностей ответа.
func inputPeerFromEntities(peer tg.PeerClass, users []tg.UserClass, chats []tg.ChatClass) tg.InputPeerClass {
	switch p := peer.(type) {
	case *tg.PeerUser:
		for _, entity := range users {
			if user, ok := entity.(*tg.User); ok && user.ID == p.UserID {
				return &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash}
			}
		}
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}
	case *tg.PeerChannel:
		for _, entity := range chats {
			if channel, ok := entity.(*tg.Channel); ok && channel.ID == p.ChannelID {
				return &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}
			}
		}
	}
	return nil
}
